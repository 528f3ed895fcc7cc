// File: internal/solver/detector.go

// Package solver detects blocking verification challenges on the live page
// and obtains bypass tokens from an external solving service.
package solver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// detectionScript scans the DOM for the three challenge families we can
// solve. Each hit carries a confidence; the page may embed several widgets
// so results come back ranked and the caller takes the best.
const detectionScript = `(() => {
	const results = [];

	const turnstileSelectors = [
		'[data-sitekey*="0x"]',
		'[data-sitekey*="3x"]',
		'.cf-turnstile[data-sitekey]',
		'iframe[src*="turnstile"]',
		'iframe[src*="cloudflare"]',
		'[class*="turnstile"][data-sitekey]'
	];
	for (const selector of turnstileSelectors) {
		for (const el of document.querySelectorAll(selector)) {
			const sitekey = el.getAttribute('data-sitekey') ||
				el.getAttribute('data-site-key') ||
				(el.src && (el.src.match(/sitekey=([^&]+)/) || [])[1]);
			if (sitekey && (sitekey.startsWith('0x') || sitekey.startsWith('3x') || sitekey.length >= 20)) {
				results.push({type: 'turnstile', sitekey: sitekey, confidence: 95, method: 'dom_turnstile'});
			}
		}
	}

	const recaptchaSelectors = [
		'.g-recaptcha[data-sitekey]',
		'iframe[src*="recaptcha"]',
		'[data-sitekey^="6L"]',
		'div[data-sitekey]'
	];
	for (const selector of recaptchaSelectors) {
		for (const el of document.querySelectorAll(selector)) {
			let sitekey = el.getAttribute('data-sitekey');
			if (!sitekey && el.src && el.src.includes('recaptcha')) {
				const m = el.src.match(/[?&]k=([^&]+)/);
				if (m) sitekey = m[1];
			}
			if (sitekey && sitekey.length >= 30 && sitekey.startsWith('6L')) {
				results.push({type: 'recaptcha_v2', sitekey: sitekey, confidence: 90, method: 'dom_recaptcha'});
			}
		}
	}

	for (const el of document.querySelectorAll('.h-captcha[data-sitekey], [data-hcaptcha-sitekey]')) {
		const sitekey = el.getAttribute('data-sitekey') || el.getAttribute('data-hcaptcha-sitekey');
		if (sitekey) {
			results.push({type: 'hcaptcha', sitekey: sitekey, confidence: 85, method: 'dom_hcaptcha'});
		}
	}

	// Invisible widgets only show up in bootstrap scripts.
	for (const script of document.querySelectorAll('script')) {
		const text = script.textContent || '';
		const v3 = text.match(/grecaptcha\.execute\s*\(\s*['"]([^'"]+)['"]/);
		if (v3) {
			results.push({type: 'recaptcha_v3', sitekey: v3[1], confidence: 80, method: 'script_scan'});
		}
		const ts = text.match(/turnstile\.render\s*\([^,]*,\s*{[^}]*sitekey\s*:\s*['"]([^'"]+)['"]/);
		if (ts) {
			results.push({type: 'turnstile', sitekey: ts[1], confidence: 85, method: 'script_scan'});
		}
	}

	results.sort((a, b) => b.confidence - a.confidence);
	return results.slice(0, 3);
})()`

// Detect scans the surface's page and returns the highest-confidence
// challenge found, or nil when the page is clean.
func (s *Solver) Detect(ctx context.Context, surface schemas.InteractionSurface) (*schemas.ChallengeDescriptor, error) {
	var found []schemas.ChallengeDescriptor
	if err := surface.Evaluate(ctx, detectionScript, &found); err != nil {
		return nil, fmt.Errorf("challenge scan: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	best := found[0]
	if url, err := surface.CurrentURL(ctx); err == nil {
		best.PageURL = url
	}
	s.logger.Info("challenge detected",
		zap.String("kind", best.Kind),
		zap.String("sitekey", best.SiteKey),
		zap.Float64("confidence", best.Confidence),
		zap.String("method", best.Method))
	return &best, nil
}
