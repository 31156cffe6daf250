package recommend

import (
	"fmt"
	"os"
	"strings"

	"coinpulse/internal/provider"
)

// SystemPrompt pins the reply format Parse expects.
const SystemPrompt = `You are a cryptocurrency expert and financial analyst.
Your task is to give a buy recommendation for a single cryptocurrency.

Your response MUST follow this exact format:
RECOMMENDATION: [BUY or DON'T TOUCH]
DETAILS: [2-3 sentences on the reasoning: market trend, technical indicators, key factors]

Example:
RECOMMENDATION: BUY
DETAILS: Bitcoin shows steady momentum with growing institutional demand. The recent consolidation above support suggests buyers are in control.

Always start with "RECOMMENDATION:" followed by either "BUY" or "DON'T TOUCH", then on a new line "DETAILS:" with your analysis.`

// DefaultTemplate is used when no prompt file is configured.
const DefaultTemplate = `Analyze the cryptocurrency {CRYPTO_NAME} ({CRYPTO_SYMBOL}) and provide a recommendation.

Current data:
- Price: ${CURRENT_PRICE} ({PRICE_LEVEL})
- 24-hour change: {TREND}
- Dynamics: {DYNAMICS}

Consider:
1. Current news and market sentiment around {CRYPTO_NAME}
2. Opinions of major brokers and analysts
3. Technical analysis and trends
4. Fundamentals of the project
5. The overall state of the crypto market

Should one buy ("BUY NOW") or stay away ("DON'T TOUCH")?`

// LoadTemplate reads a prompt template, falling back to DefaultTemplate
// when path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return DefaultTemplate, fmt.Errorf("read prompt template: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return DefaultTemplate, nil
	}
	return string(b), nil
}

// Trend buckets the 24h change.
func Trend(pct float64) string {
	switch {
	case pct > 5:
		return fmt.Sprintf("strong growth (+%.2f%%)", pct)
	case pct > 0:
		return fmt.Sprintf("slight growth (+%.2f%%)", pct)
	case pct > -5:
		return fmt.Sprintf("slight decline (%.2f%%)", pct)
	default:
		return fmt.Sprintf("strong decline (%.2f%%)", pct)
	}
}

// PriceLevel buckets the absolute price.
func PriceLevel(price float64) string {
	switch {
	case price >= 10000:
		return "high price"
	case price >= 100:
		return "medium price"
	case price >= 1:
		return "low price"
	default:
		return "very low price"
	}
}

// BuildPrompt fills the template placeholders for a.
func BuildPrompt(template string, a provider.Asset) string {
	if template == "" {
		template = DefaultTemplate
	}
	dynamics := "negative"
	if a.ChangePercent24h > 0 {
		dynamics = "positive"
	}
	r := strings.NewReplacer(
		"{CRYPTO_NAME}", a.Name,
		"{CRYPTO_SYMBOL}", a.Symbol,
		"{CURRENT_PRICE}", fmt.Sprintf("%.2f", a.Price),
		"{PRICE_LEVEL}", PriceLevel(a.Price),
		"{TREND}", Trend(a.ChangePercent24h),
		"{DYNAMICS}", dynamics,
	)
	return r.Replace(template)
}
