package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// Vitals holds vital signs mentioned in a transcript. Nil means not mentioned.
// Only SpO2 and PainScore drive the waterfall.
type Vitals struct {
	HeartRate       *int
	RespiratoryRate *int
	SpO2            *int
	PainScore       *int
}

var (
	heartRatePattern       = regexp.MustCompile(`heart rate[:\s]+(\d+)`)
	respiratoryRatePattern = regexp.MustCompile(`respiratory rate[:\s]+(\d+)`)
	spo2Pattern            = regexp.MustCompile(`(?:oxygen|spo2|o2 sat)[:\s]+(\d+)`)
	painPattern            = regexp.MustCompile(`pain[:\s]+(\d+)(?:/10)?`)
)

// ExtractVitals pulls numeric vital signs out of free text.
func ExtractVitals(text string) Vitals {
	lowered := strings.ToLower(text)
	return Vitals{
		HeartRate:       firstNumber(heartRatePattern, lowered),
		RespiratoryRate: firstNumber(respiratoryRatePattern, lowered),
		SpO2:            firstNumber(spo2Pattern, lowered),
		PainScore:       firstNumber(painPattern, lowered),
	}
}

func firstNumber(re *regexp.Regexp, text string) *int {
	match := re.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &value
}
