// File: internal/browser/locator_test.go

package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// scriptSurface records evaluated scripts and replays canned candidates.
type scriptSurface struct {
	lastScript string
	candidates []schemas.ElementCandidate
	evalErr    error
}

func (s *scriptSurface) Navigate(ctx context.Context, url string) error       { return nil }
func (s *scriptSurface) CurrentURL(ctx context.Context) (string, error)       { return "https://example.com", nil }
func (s *scriptSurface) Content(ctx context.Context) (string, error)          { return "", nil }
func (s *scriptSurface) Screenshot(ctx context.Context) ([]byte, error)       { return nil, nil }
func (s *scriptSurface) ScrollBy(ctx context.Context, deltaY int) error       { return nil }
func (s *scriptSurface) ClearInputs(ctx context.Context) error                { return nil }
func (s *scriptSurface) Close(ctx context.Context) error                      { return nil }
func (s *scriptSurface) Click(ctx context.Context, sel string, t time.Duration) error { return nil }
func (s *scriptSurface) Fill(ctx context.Context, sel, text string, t time.Duration) error {
	return nil
}
func (s *scriptSurface) Press(ctx context.Context, sel, key string, t time.Duration) error {
	return nil
}

func (s *scriptSurface) Evaluate(ctx context.Context, script string, out any) error {
	s.lastScript = script
	if s.evalErr != nil {
		return s.evalErr
	}
	if dst, ok := out.(*[]schemas.ElementCandidate); ok {
		*dst = s.candidates
	}
	return nil
}

func TestLocatorRejectsEmptyText(t *testing.T) {
	loc := NewLocator(10, zap.NewNop())
	_, err := loc.Search(context.Background(), &scriptSurface{}, "   ")
	require.Error(t, err)
}

func TestLocatorEmbedsQuotedSearchText(t *testing.T) {
	surface := &scriptSurface{}
	loc := NewLocator(7, zap.NewNop())

	// A hostile search phrase must arrive inside the script as a JSON string
	// literal, never as raw code.
	_, err := loc.Search(context.Background(), surface, `"); alert(1); ("`)
	require.NoError(t, err)
	assert.Contains(t, surface.lastScript, `"\"); alert(1); (\""`)
	assert.Contains(t, surface.lastScript, "const maxResults = 7;")
}

func TestLocatorReturnsDecodedCandidates(t *testing.T) {
	surface := &scriptSurface{
		candidates: []schemas.ElementCandidate{
			{TagName: "button", Selectors: []string{"#add-to-cart"}, Visible: true, Interactive: true, Clickable: true, Score: 25.0},
			{TagName: "span", Selectors: []string{"span.label"}, Visible: true, Score: 16.0},
		},
	}
	loc := NewLocator(10, zap.NewNop())

	got, err := loc.Search(context.Background(), surface, "add to cart")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "button", got[0].TagName)
	assert.True(t, got[0].Clickable)
}

func TestLocatorDefaultsCandidateBound(t *testing.T) {
	surface := &scriptSurface{}
	loc := NewLocator(0, zap.NewNop())

	_, err := loc.Search(context.Background(), surface, "checkout")
	require.NoError(t, err)
	assert.True(t, strings.Contains(surface.lastScript, "const maxResults = 10;"))
}
