package messaging

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
	"github.com/shopspring/decimal"
)

// ErrInvalidTemplate is returned when a template does not parse or render.
var ErrInvalidTemplate = errors.New("invalid template")

// Vars are the per-recipient values substituted into a template.
// Absent values render as an empty string.
type Vars struct {
	Name    string
	Service string
	Price   *decimal.Decimal
}

// TemplateService handles Liquid template rendering with caching
type TemplateService struct {
	engine *liquid.Engine
	money  MoneyFormat
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a new template service with custom filters
func NewTemplateService(money MoneyFormat) *TemplateService {
	ts := &TemplateService{
		engine: liquid.NewEngine(),
		money:  money,
	}
	ts.registerCustomFilters()
	return ts
}

func (ts *TemplateService) registerCustomFilters() {
	// {{ name | default: "cliente" }}
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | first_word }}
	ts.engine.RegisterFilter("first_word", firstWord)

	// {{ name | titlecase }}
	ts.engine.RegisterFilter("titlecase", func(s string) string {
		words := strings.Fields(strings.ToLower(s))
		for i, w := range words {
			r := []rune(w)
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
			words[i] = string(r)
		}
		return strings.Join(words, " ")
	})

	// {{ 49.9 | currency }} formats a raw amount the same way as price.
	ts.engine.RegisterFilter("currency", func(value interface{}) string {
		d, err := decimal.NewFromString(fmt.Sprintf("%v", value))
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return ts.money.Format(d)
	})
}

// Validate parses tpl and renders it once with empty values. Filters are
// resolved at render time, so an unknown filter only surfaces here.
func (ts *TemplateService) Validate(tpl string) error {
	parsed, err := ts.engine.ParseString(tpl)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if _, err := parsed.RenderString(ts.bindings(Vars{})); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return nil
}

// Render substitutes vars into tpl. The parsed template is cached under
// cacheKey when one is given, so a campaign parses its template once no
// matter how many recipients it has.
func (ts *TemplateService) Render(cacheKey, tpl string, vars Vars) (string, error) {
	var parsed *liquid.Template
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			parsed = cached.(*liquid.Template)
		}
	}
	if parsed == nil {
		p, err := ts.engine.ParseString(tpl)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		parsed = p
		if cacheKey != "" {
			ts.cache.Store(cacheKey, parsed)
		}
	}

	out, err := parsed.RenderString(ts.bindings(vars))
	if err != nil {
		return "", fmt.Errorf("%w: render: %v", ErrInvalidTemplate, err)
	}
	return out, nil
}

// Forget drops a cached template.
func (ts *TemplateService) Forget(cacheKey string) {
	ts.cache.Delete(cacheKey)
}

func (ts *TemplateService) bindings(v Vars) map[string]interface{} {
	price := ""
	if v.Price != nil {
		price = ts.money.Format(*v.Price)
	}
	return map[string]interface{}{
		"name":       v.Name,
		"first_name": firstWord(v.Name),
		"service":    v.Service,
		"price":      price,
	}
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
