package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mikey/payment-tracker/internal/utils"
)

func TestStripHTML(t *testing.T) {
	tp := utils.NewTextProcessor(zap.NewNop())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "plain tags",
			in:   "<p>Hello <b>world</b></p>",
			want: "Hello world",
		},
		{
			name: "script and style removed",
			in:   `<style>p { color: red }</style><script>alert("x")</script><p>kept</p>`,
			want: "kept",
		},
		{
			name: "entities decoded",
			in:   "<p>Smith &amp; Sons sent you 5.00&nbsp;USD</p>",
			want: "Smith & Sons sent you 5.00 USD",
		},
		{
			name: "table cells separated by spaces",
			in:   "<table><tr><td>100.50</td><td>USD</td></tr></table>",
			want: "100.50 USD",
		},
		{
			name: "whitespace collapsed",
			in:   "<div>a\n\n  b\t c</div>",
			want: "a b c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tp.StripHTML(tt.in))
		})
	}
}

func TestCleanEncoded(t *testing.T) {
	tp := utils.NewTextProcessor(zap.NewNop())

	assert.Equal(t, `<a href="x">`, tp.CleanEncoded(`<a href=3D"x">`))
	assert.Equal(t, "joined line", tp.CleanEncoded("joined =\r\nline"))
	assert.Equal(t, "joined line", tp.CleanEncoded("joined =\nline"))
	assert.Equal(t, "", tp.CleanEncoded(""))
}

func TestNormalizeBody(t *testing.T) {
	tp := utils.NewTextProcessor(zap.NewNop())

	in := "<p class=3D\"amount\">Jane has sent you 1,2=\r\n50.00 USD</p>"
	assert.Equal(t, `Jane has sent you 1,250.00 USD`, tp.NormalizeBody(in))
}
