// File: internal/browser/locator.go

package browser

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

var locatorJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// locatorScript ranks page elements against a search phrase. Matching is
// fuzzy: text is normalized (lowercased, separators stripped) and scored on
// exact, prefix, substring and suffix hits across text content, attributes
// and id/class tokens. The script returns at most %d candidates sorted by a
// blend of visibility, interactivity and match strength.
const locatorScript = `(() => {
	const searchText = %s;
	const maxResults = %d;

	const normalize = (s) => String(s || '')
		.toLowerCase()
		.replace(/[\s_-]+/g, '')
		.replace(/[^a-z0-9]/g, '');

	const target = normalize(searchText);
	if (!target) return [];
	const targetWords = String(searchText).toLowerCase().split(/\s+/).filter(w => w.length > 1);

	const scoreText = (raw) => {
		const norm = normalize(raw);
		if (!norm) return 0;
		let score = 0;
		if (norm === target) score = 100;
		else if (norm.startsWith(target)) score = 80;
		else if (norm.includes(target)) score = 60;
		else if (target.endsWith(norm) && norm.length >= 3) score = 40;
		else return 0;
		if (norm.length === target.length) score += 20;
		if (targetWords.length > 1 && targetWords.every(w => String(raw).toLowerCase().includes(w))) {
			score += 10;
		}
		return score;
	};

	const cssEscape = (s) => (window.CSS && CSS.escape) ? CSS.escape(s) : s.replace(/[^a-zA-Z0-9_-]/g, '\\$&');

	const selectorsFor = (el) => {
		const out = [];
		if (el.id) out.push('#' + cssEscape(el.id));
		if (el.classList.length > 0 && el.classList.length <= 3) {
			out.push(el.tagName.toLowerCase() + '.' + [...el.classList].map(cssEscape).join('.'));
		}
		for (const attr of el.attributes) {
			if (attr.name.startsWith('data-') && attr.value && attr.value.length < 50) {
				out.push('[' + attr.name + '="' + attr.value.replace(/"/g, '\\"') + '"]');
			}
		}
		for (const name of ['name', 'type', 'role', 'aria-label']) {
			const v = el.getAttribute(name);
			if (v && v.length < 50) {
				out.push(el.tagName.toLowerCase() + '[' + name + '="' + v.replace(/"/g, '\\"') + '"]');
			}
		}
		if (out.length === 0) out.push(el.tagName.toLowerCase());
		return out.slice(0, 4);
	};

	const isVisible = (el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
		return el.offsetParent !== null || style.position === 'fixed';
	};

	const interactiveTags = new Set(['a', 'button', 'input', 'select', 'textarea', 'option', 'label', 'summary']);
	const isInteractive = (el) => {
		const tag = el.tagName.toLowerCase();
		if (interactiveTags.has(tag)) return true;
		if (el.onclick || el.hasAttribute('onclick')) return true;
		if (el.hasAttribute('href')) return true;
		if (el.hasAttribute('tabindex') && el.getAttribute('tabindex') !== '-1') return true;
		const role = el.getAttribute('role');
		return ['button', 'link', 'menuitem', 'tab', 'checkbox', 'radio'].includes(role);
	};

	const isClickable = (el) => {
		if (isInteractive(el)) return true;
		try {
			return window.getComputedStyle(el).cursor === 'pointer';
		} catch (e) {
			return false;
		}
	};

	const results = [];
	const all = document.querySelectorAll('body *');
	for (const el of all) {
		const tag = el.tagName.toLowerCase();
		if (['script', 'style', 'meta', 'link', 'noscript', 'head'].includes(tag)) continue;

		let maxScore = 0;
		const ownText = [...el.childNodes]
			.filter(n => n.nodeType === Node.TEXT_NODE)
			.map(n => n.textContent)
			.join(' ')
			.trim();
		maxScore = Math.max(maxScore, scoreText(ownText));
		for (const name of ['value', 'placeholder', 'title', 'alt', 'aria-label', 'name']) {
			maxScore = Math.max(maxScore, scoreText(el.getAttribute(name)));
		}
		if (el.id) maxScore = Math.max(maxScore, scoreText(el.id));
		for (const cls of el.classList) {
			maxScore = Math.max(maxScore, scoreText(cls));
		}
		if (maxScore === 0) continue;

		const visible = isVisible(el);
		const interactive = isInteractive(el);
		const clickable = isClickable(el);
		const rank = (visible ? 10 : 0) + (interactive ? 5 : 0) + (clickable ? 3 : 0) + maxScore / 10;

		results.push({
			tag_name: tag,
			selectors: selectorsFor(el),
			is_visible: visible,
			is_interactive: interactive,
			is_clickable: clickable,
			score: rank,
			text_content: (el.textContent || '').trim().slice(0, 120),
		});
	}

	results.sort((a, b) => b.score - a.score);
	return results.slice(0, maxResults);
})()`

// Locator finds candidate elements by fuzzy text match inside the live page.
type Locator struct {
	maxCandidates int
	logger        *zap.Logger
}

// NewLocator builds a locator bounded to maxCandidates results per search.
func NewLocator(maxCandidates int, logger *zap.Logger) *Locator {
	if maxCandidates <= 0 {
		maxCandidates = 10
	}
	return &Locator{
		maxCandidates: maxCandidates,
		logger:        logger.Named("locator"),
	}
}

// Search runs the ranking script against the surface's current page.
func (l *Locator) Search(ctx context.Context, surface schemas.InteractionSurface, text string) ([]schemas.ElementCandidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("search text is empty")
	}

	quoted, err := locatorJSON.MarshalToString(text)
	if err != nil {
		return nil, fmt.Errorf("encoding search text: %w", err)
	}
	script := fmt.Sprintf(locatorScript, quoted, l.maxCandidates)

	var candidates []schemas.ElementCandidate
	if err := surface.Evaluate(ctx, script, &candidates); err != nil {
		return nil, fmt.Errorf("element search for %q: %w", text, err)
	}

	l.logger.Debug("element search completed",
		zap.String("text", text),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

var _ schemas.ElementLocator = (*Locator)(nil)
