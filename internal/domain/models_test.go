package domain

import "testing"

func TestNormalizePair_Ordering(t *testing.T) {
	cases := []struct {
		a, b           string
		want1, want2   string
	}{
		{"alice", "bob", "alice", "bob"},
		{"bob", "alice", "alice", "bob"},
		{"u-1", "u-1", "u-1", "u-1"}, // equal ids pass through; services reject self-pairs
		{"9", "10", "10", "9"},       // lexicographic, not numeric
	}
	for _, tc := range cases {
		got1, got2 := NormalizePair(tc.a, tc.b)
		if got1 != tc.want1 || got2 != tc.want2 {
			t.Fatalf("NormalizePair(%q,%q) = (%q,%q), want (%q,%q)",
				tc.a, tc.b, got1, got2, tc.want1, tc.want2)
		}
	}
}

func TestNormalizePair_OrderIndependent(t *testing.T) {
	a1, a2 := NormalizePair("seller-7", "buyer-3")
	b1, b2 := NormalizePair("buyer-3", "seller-7")
	if a1 != b1 || a2 != b2 {
		t.Fatalf("pair not order independent: (%q,%q) vs (%q,%q)", a1, a2, b1, b2)
	}
}

func TestConversation_ParticipantHelpers(t *testing.T) {
	c := Conversation{User1ID: "alice", User2ID: "bob"}

	if !c.HasParticipant("alice") || !c.HasParticipant("bob") {
		t.Fatalf("participants not recognized: %+v", c)
	}
	if c.HasParticipant("mallory") {
		t.Fatalf("non-participant recognized")
	}
	if got := c.Other("alice"); got != "bob" {
		t.Fatalf("Other(alice) = %q, want bob", got)
	}
	if got := c.Other("bob"); got != "alice" {
		t.Fatalf("Other(bob) = %q, want alice", got)
	}
	if got := c.Other("mallory"); got != "" {
		t.Fatalf("Other(non-participant) = %q, want empty", got)
	}
}

func TestViewerKeys_NoCollision(t *testing.T) {
	if ViewerKeyUser("10.0.0.1") == ViewerKeyIP("10.0.0.1") {
		t.Fatalf("user and ip keys must not collide for the same raw value")
	}
	if ViewerKeyUser("u1") != "user:u1" {
		t.Fatalf("unexpected user key: %q", ViewerKeyUser("u1"))
	}
	if ViewerKeyIP("203.0.113.7") != "ip:203.0.113.7" {
		t.Fatalf("unexpected ip key: %q", ViewerKeyIP("203.0.113.7"))
	}
}
