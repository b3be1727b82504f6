package gcs

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"object at root", "gs://purchases/2019-Oct.csv", "purchases", "2019-Oct.csv", false},
		{"nested object", "gs://purchases/raw/2019/Nov.csv", "purchases", "raw/2019/Nov.csv", false},
		{"missing scheme", "purchases/2019-Oct.csv", "", "", true},
		{"bucket only", "gs://purchases", "", "", true},
		{"empty object", "gs://purchases/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"gs://bucket/folder/2019-Oct.csv", "2019-Oct.csv"},
		{"/data/2019-Nov.csv", "2019-Nov.csv"},
		{"2019-Dec.csv", "2019-Dec.csv"},
	}
	for _, tt := range tests {
		if got := Filename(tt.in); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "hourly_peaks.csv", "hourly_peaks.csv"},
		{"reports/2024", "hourly_peaks.csv", "reports/2024/hourly_peaks.csv"},
		{"/reports/", "hourly_peaks.csv", "reports/hourly_peaks.csv"},
	}
	for _, tt := range tests {
		if got := ObjectName(tt.prefix, tt.name); got != tt.want {
			t.Errorf("ObjectName(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}
