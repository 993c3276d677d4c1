package domain

import "testing"

var testPolicy = AccessPolicy{
	DesignatedChannel: "ask-anything",
	SpecialRole:       "Special Access",
	VerifiedRole:      "Verified",
}

func TestAccessPolicy_Decide_BothRoles(t *testing.T) {
	roles := NewRoleSet("Special Access", "Verified")
	if got := testPolicy.Decide("ask-anything", roles); got != Allowed {
		t.Errorf("Expected Allowed, got %v", got)
	}
}

func TestAccessPolicy_Decide_RoleOrderIndependent(t *testing.T) {
	// Role checks use set membership, not ordering
	a := NewRoleSet("Verified", "Special Access")
	b := NewRoleSet("Special Access", "Verified")
	if testPolicy.Decide("ask-anything", a) != testPolicy.Decide("ask-anything", b) {
		t.Error("Decision must not depend on role ordering")
	}
}

func TestAccessPolicy_Decide_VerifiedOnly(t *testing.T) {
	roles := NewRoleSet("Verified")
	if got := testPolicy.Decide("ask-anything", roles); got != DeniedPartial {
		t.Errorf("Expected DeniedPartial, got %v", got)
	}
}

func TestAccessPolicy_Decide_NoRoles(t *testing.T) {
	if got := testPolicy.Decide("ask-anything", NewRoleSet()); got != DeniedFull {
		t.Errorf("Expected DeniedFull, got %v", got)
	}
}

func TestAccessPolicy_Decide_SpecialWithoutVerified(t *testing.T) {
	// "Special Access" alone does not grant Allowed; it is not
	// "Verified" either, so the author falls through to DeniedFull
	roles := NewRoleSet("Special Access")
	if got := testPolicy.Decide("ask-anything", roles); got != DeniedFull {
		t.Errorf("Expected DeniedFull, got %v", got)
	}
}

func TestAccessPolicy_Decide_OtherChannel(t *testing.T) {
	roles := NewRoleSet("Special Access", "Verified")
	if got := testPolicy.Decide("general", roles); got != NotApplicable {
		t.Errorf("Expected NotApplicable, got %v", got)
	}
}

func TestAccessPolicy_Decide_Deterministic(t *testing.T) {
	roles := NewRoleSet("Verified")
	first := testPolicy.Decide("ask-anything", roles)
	for i := 0; i < 10; i++ {
		if got := testPolicy.Decide("ask-anything", roles); got != first {
			t.Fatalf("Decision changed between identical calls: %v then %v", first, got)
		}
	}
}
