package sample

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:  "wav file name",
			input: "269570__vonora__cuckoo-the-nightingale-duet.wav",
		},
		{
			name:  "name without extension",
			input: "thunder",
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrEmptyName,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: ErrEmptyName,
		},
		{
			name:    "parent directory",
			input:   "..",
			wantErr: ErrInvalidName,
		},
		{
			name:    "path traversal",
			input:   "../../etc/passwd",
			wantErr: ErrInvalidName,
		},
		{
			name:    "windows separator",
			input:   `birds\song.wav`,
			wantErr: ErrInvalidName,
		},
		{
			name:    "nul byte",
			input:   "bird\x00.wav",
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParams_Ref(t *testing.T) {
	p := Params{Dir: "/home/pi/TheForest/Samples", Start: 0.25, Finish: 1.0}

	ref := p.Ref("bird.wav")

	assert.Equal(t, "bird.wav", ref.String())
	assert.Equal(t, filepath.Join("/home/pi/TheForest/Samples", "bird.wav"), ref.Path())
	assert.InDelta(t, 0.75, p.Span(), 1e-9)
}
