package domain

import "testing"

func TestSentinelLabel(t *testing.T) {
	l := SentinelLabel(DefaultUnlabelledTemplate, 99)
	if l.String() != "unlabelled (ID: 99)" {
		t.Errorf("String() = %q, want %q", l.String(), "unlabelled (ID: 99)")
	}
	if l.Known {
		t.Error("sentinel label must not be known")
	}
	if l.SourceID != 99 {
		t.Errorf("SourceID = %d, want 99", l.SourceID)
	}
}

func TestParseSentinelID(t *testing.T) {
	tests := []struct {
		input  string
		wantID int64
		wantOK bool
	}{
		{"unlabelled (ID: 99)", 99, true},
		{"unknown (Prod: 1005115)", 1005115, true},
		{"electronics.smartphone", 0, false},
		{"samsung", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, ok := ParseSentinelID(tt.input)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("ParseSentinelID(%q) = (%d, %v), want (%d, %v)", tt.input, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestUserTypeOf(t *testing.T) {
	id := int64(42)
	if got := UserTypeOf(&id); got != UserTypeRegistered {
		t.Errorf("UserTypeOf(&42) = %q, want registered", got)
	}
	if got := UserTypeOf(nil); got != UserTypeAnonymous {
		t.Errorf("UserTypeOf(nil) = %q, want anonymous", got)
	}
}
