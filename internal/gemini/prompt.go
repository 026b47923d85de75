package gemini

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/digkill/ValuationAPI/internal/models"
)

var valuationSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"estimatedValueRange": map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"min": map[string]any{"type": "NUMBER"},
				"max": map[string]any{"type": "NUMBER"},
			},
			"required": []string{"min", "max"},
		},
		"confidenceScore":   map[string]any{"type": "NUMBER", "description": "0 to 100"},
		"currency":          map[string]any{"type": "STRING", "description": "ISO code, USD when unclear"},
		"reasoning":         map[string]any{"type": "STRING"},
		"detectedFeatures":  map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"propertyType":      map[string]any{"type": "STRING"},
		"propertyCondition": map[string]any{"type": "STRING"},
		"lowImageDiversity": map[string]any{"type": "BOOLEAN", "description": "true when the photos show too little of the property to judge it"},
		"suggestedUpgrades": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"upgrade":       map[string]any{"type": "STRING"},
					"reasoning":     map[string]any{"type": "STRING"},
					"estimatedCost": map[string]any{"type": "STRING", "enum": []string{"Low", "Medium", "High"}},
					"impactOnValue": map[string]any{"type": "STRING", "enum": []string{"Low", "Medium", "High"}},
				},
				"required": []string{"upgrade", "reasoning", "estimatedCost", "impactOnValue"},
			},
		},
	},
	"required": []string{
		"estimatedValueRange", "confidenceScore", "currency", "reasoning",
		"detectedFeatures", "propertyType", "propertyCondition", "suggestedUpgrades",
	},
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func number(v *float64, suffix, def string) string {
	if v == nil || *v <= 0 {
		return def
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + suffix
}

func valuationPrompt(d models.PropertyDetails) string {
	var b strings.Builder
	b.WriteString("You are an experienced real estate appraiser. Estimate the market value of the property shown in the attached photos.\n\n")
	b.WriteString("Property details:\n")
	fmt.Fprintf(&b, "- Address: %s\n", orDefault(d.Address, "Not provided"))
	fmt.Fprintf(&b, "- Size: %s\n", number(d.PropertySize, " sqft", "Not provided"))
	fmt.Fprintf(&b, "- Bedrooms: %s\n", number(d.Bedrooms, "", "Not provided"))
	fmt.Fprintf(&b, "- Bathrooms: %s\n", number(d.Bathrooms, "", "Not provided"))
	fmt.Fprintf(&b, "- Notes: %s\n\n", orDefault(d.AdditionalNotes, "None"))
	if strings.TrimSpace(d.Address) != "" {
		b.WriteString("Search for recent comparable sales near this address and base the estimate on them. Explain in the reasoning how the property differs from those sales.\n")
	} else {
		b.WriteString("No address is known. Base the estimate on the visual evidence and an average market for this property type.\n")
	}
	b.WriteString("Set lowImageDiversity to true if the photos repeat the same view or do not show enough of the property.\n")
	b.WriteString("Suggest upgrades that would raise the value, with cost and impact rated Low, Medium or High.\n\n")
	b.WriteString(`Reply with one JSON object and nothing else:
{"estimatedValueRange":{"min":number,"max":number},"confidenceScore":number,"currency":string,"reasoning":string,"detectedFeatures":[string],"propertyType":string,"propertyCondition":string,"lowImageDiversity":boolean,"suggestedUpgrades":[{"upgrade":string,"reasoning":string,"estimatedCost":string,"impactOnValue":string}]}`)
	return b.String()
}

func detailedReportPrompt(r *models.Report) string {
	var b strings.Builder
	b.WriteString("Write a client-facing property valuation report in Markdown with these sections: ")
	b.WriteString("## Executive Summary, ## Property Overview, ## Market & Valuation Analysis, ## Path to Increased Value, ## Conclusion & Disclaimer. ")
	b.WriteString("The disclaimer must say the estimate is AI-generated and an in-person appraisal is recommended. Return only the report text.\n\n")
	fmt.Fprintf(&b, "Property type: %s\n", orDefault(r.PropertyType, "Not specified"))
	fmt.Fprintf(&b, "Address: %s\n", orDefault(r.PropertyDetails.Address, "Not specified"))
	fmt.Fprintf(&b, "Size: %s\n", number(r.PropertyDetails.PropertySize, " sqft", "Not specified"))
	fmt.Fprintf(&b, "Bedrooms: %s\n", number(r.PropertyDetails.Bedrooms, "", "Not specified"))
	fmt.Fprintf(&b, "Bathrooms: %s\n", number(r.PropertyDetails.Bathrooms, "", "Not specified"))
	if r.EstimatedValueRange != nil {
		fmt.Fprintf(&b, "Estimated value: %.0f - %.0f %s\n", r.EstimatedValueRange.Min, r.EstimatedValueRange.Max, r.Currency)
	}
	fmt.Fprintf(&b, "Confidence: %.0f/100\n", r.ConfidenceScore)
	fmt.Fprintf(&b, "Condition: %s\n", orDefault(r.PropertyCondition, "Not specified"))
	fmt.Fprintf(&b, "Reasoning: %s\n", r.Reasoning)
	if len(r.DetectedFeatures) > 0 {
		fmt.Fprintf(&b, "Detected features: %s\n", strings.Join(r.DetectedFeatures, ", "))
	}
	if len(r.SuggestedUpgrades) > 0 {
		b.WriteString("Suggested upgrades:\n")
		for _, u := range r.SuggestedUpgrades {
			fmt.Fprintf(&b, "  - %s: %s (cost %s, impact %s)\n", u.Upgrade, u.Reasoning, u.EstimatedCost, u.ImpactOnValue)
		}
	}
	if len(r.Sources) > 0 {
		b.WriteString("Web sources:\n")
		for _, s := range r.Sources {
			fmt.Fprintf(&b, "  - [%s](%s)\n", s.Title, s.URI)
		}
	}
	return b.String()
}
