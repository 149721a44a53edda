package classify

import "strings"

const (
	// VerdictYes is the only verdict token that counts as Jain-friendly
	VerdictYes = "YES"
	// VerdictNo is what the model backends answer for everything else
	VerdictNo = "NO"

	PositiveHeadline = "This is Jain-friendly!"
	NegativeHeadline = "This may not be Jain-friendly"

	// FallbackText stands in for a missing response field so there is always something to parse
	FallbackText = "No response field in API"
)

// Result is what the screen shows for a classification
type Result struct {
	Headline     string
	Explanation  string
	JainFriendly bool
}

// ParseText splits "<VERDICT>.<explanation>" on the first period.
// The verdict must equal "YES" exactly, case matters. Periods inside the
// explanation survive; a stray period in the verdict misclassifies.
func ParseText(text string) Result {
	verdict, explanation, _ := strings.Cut(text, ".")
	return newResult(strings.TrimSpace(verdict) == VerdictYes, strings.TrimSpace(explanation))
}

// Parse prefers the structured verdict and falls back to the text convention
func Parse(resp *Response) Result {
	if resp == nil {
		return ParseText(FallbackText)
	}
	if verdict := strings.TrimSpace(resp.Verdict); verdict != "" {
		return newResult(verdict == VerdictYes, strings.TrimSpace(resp.Explanation))
	}
	text := resp.Text
	if text == "" {
		text = FallbackText
	}
	return ParseText(text)
}

func newResult(friendly bool, explanation string) Result {
	headline := NegativeHeadline
	if friendly {
		headline = PositiveHeadline
	}
	return Result{
		Headline:     headline,
		Explanation:  explanation,
		JainFriendly: friendly,
	}
}

// responseFromModel normalizes free model output into both response forms
func responseFromModel(text string) *Response {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	verdict, explanation, _ := strings.Cut(text, ".")
	verdict = strings.ToUpper(strings.Trim(strings.TrimSpace(verdict), "*:"))
	if verdict != VerdictYes {
		verdict = VerdictNo
	}
	explanation = strings.TrimSpace(explanation)

	resp := &Response{
		Text:        verdict + ".",
		Verdict:     verdict,
		Explanation: explanation,
	}
	if explanation != "" {
		resp.Text += " " + explanation
	}
	return resp
}
