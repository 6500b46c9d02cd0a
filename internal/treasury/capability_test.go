package treasury

import "testing"

func TestMintVerify(t *testing.T) {
	v, err := NewVault("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewVault error: %v", err)
	}

	g := v.Mint(7, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", "gov", 1_000_000, 500)
	if !v.Verify(g) {
		t.Fatal("freshly minted grant must verify")
	}
}

func TestVerifyRejectsTamperedGrant(t *testing.T) {
	v, err := NewVault("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewVault error: %v", err)
	}

	g := v.Mint(7, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", "gov", 1_000_000, 500)

	tampered := g
	tampered.Amount = 2_000_000
	if v.Verify(tampered) {
		t.Fatal("tampered amount must not verify")
	}

	tampered = g
	tampered.Recipient = "0x0000000000000000000000000000000000000000"
	if v.Verify(tampered) {
		t.Fatal("tampered recipient must not verify")
	}

	tampered = g
	tampered.ProposalID = 8
	if v.Verify(tampered) {
		t.Fatal("tampered proposal id must not verify")
	}
}

func TestVerifyRejectsForeignVault(t *testing.T) {
	v1, err := NewVault("passphrase one")
	if err != nil {
		t.Fatalf("NewVault error: %v", err)
	}
	v2, err := NewVault("passphrase two")
	if err != nil {
		t.Fatalf("NewVault error: %v", err)
	}

	g := v1.Mint(1, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", "gov", 100, 0)
	if v2.Verify(g) {
		t.Fatal("grant from another vault must not verify")
	}
}

func TestVerifyRejectsZeroGrant(t *testing.T) {
	v, err := NewVault("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewVault error: %v", err)
	}
	if v.Verify(Grant{}) {
		t.Fatal("zero grant must not verify")
	}
}

func TestNewVaultRequiresPassphrase(t *testing.T) {
	if _, err := NewVault(""); err == nil {
		t.Fatal("empty passphrase must be rejected")
	}
}
