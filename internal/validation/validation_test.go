package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://example.com/page", false},
		{"valid http", "http://example.com/page", false},
		{"bad scheme", "ftp://example.com", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"loopback host", "http://localhost/x", true},
		{"loopback ip", "http://127.0.0.1/x", true},
		{"private ip", "http://10.0.0.5/x", true},
		{"link local", "http://169.254.1.1/x", true},
		{"metadata ip", "http://169.254.169.254/latest", true},
		{"internal suffix", "http://db.internal/x", true},
		{"empty", "", true},
		{"sql-ish", "http://example.com/?q=' OR 1=1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestValidateStringLength_Truncates(t *testing.T) {
	out := ValidateStringLength("abcdef", 3)
	assert.Equal(t, "abc", out)
}

func TestValidateIntegerRange(t *testing.T) {
	assert.Nil(t, ValidateIntegerRange(3, 1, 5, "max_depth"))
	assert.NotNil(t, ValidateIntegerRange(6, 1, 5, "max_depth"))
}

func TestValidateDeepCrawlParams(t *testing.T) {
	assert.Nil(t, ValidateDeepCrawlParams(2, 10))
	assert.NotNil(t, ValidateDeepCrawlParams(0, 10))
	assert.NotNil(t, ValidateDeepCrawlParams(2, 300))
}

func TestValidateRetentionPolicy(t *testing.T) {
	p, err := ValidateRetentionPolicy("permanent")
	require.Nil(t, err)
	assert.Equal(t, "permanent", string(p))

	_, err = ValidateRetentionPolicy("forever")
	assert.NotNil(t, err)
}

func TestValidateTags(t *testing.T) {
	tags, err := ValidateTags("python, async , web")
	require.Nil(t, err)
	assert.Equal(t, []string{"python", "async", "web"}, tags)

	_, err = ValidateTags("bad$tag")
	assert.NotNil(t, err)
}
