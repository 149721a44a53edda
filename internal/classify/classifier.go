package classify

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned when there is no image payload to classify
	ErrMissingInput = errors.New("no image to check")
	// ErrService marks a non-2xx answer from the classification service
	ErrService = errors.New("API request failed")
	// ErrMalformedResponse marks a 2xx answer whose body could not be decoded
	ErrMalformedResponse = errors.New("malformed classification response")
	// ErrInvalidPayload marks a payload that is not a base64 image data URI
	ErrInvalidPayload = errors.New("payload is not a base64 image data URI")
)

// ServiceError is returned for non-2xx answers. The raw body is kept for diagnostics.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s (status %d)", ErrService, e.StatusCode)
}

// Is makes errors.Is(err, ErrService) hold for every ServiceError
func (e *ServiceError) Is(target error) bool {
	return target == ErrService
}

// Request is the body of POST /isjain
type Request struct {
	Base64Image string `json:"base64Image"`
}

// Response is the body of a successful POST /isjain.
// Text follows the "<VERDICT>.<explanation>" convention. Verdict and
// Explanation are the structured form and win when Verdict is set.
type Response struct {
	Text        string `json:"response"`
	Verdict     string `json:"verdict,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Classifier decides whether the ingredient list in an image is Jain-friendly
type Classifier interface {
	// Classify sends a data URI payload for classification
	Classify(ctx context.Context, payload string) (*Response, error)
	// Close releases the classifier's resources
	Close() error
}

// ingredientPrompt is the shared prompt used by the model backends
const ingredientPrompt = `You are analyzing a photo of the ingredient list printed on a food product. Read every ingredient and decide whether the product is Jain-friendly.

A product is NOT Jain-friendly if it contains any of:
- meat, fish, poultry, seafood or any animal flesh
- eggs or egg derivatives (albumin, lysozyme, egg lecithin)
- gelatin, animal rennet, carmine/cochineal, shellac, isinglass or other animal-derived additives
- honey
- root vegetables and bulbs: onion, garlic, potato, carrot, beetroot, radish, ginger, turmeric root, leek, shallot, sweet potato, yam
- mushrooms, fungi or yeast extract
- alcohol or fermented ingredients produced with alcohol

Dairy is allowed. Dried spices made from roots (dry ginger powder, turmeric powder) are usually accepted.

Answer in exactly this format:
YES. <one or two sentences explaining why>
or
NO. <one or two sentences naming the problematic ingredients>

Important:
- The first word must be YES or NO in capital letters, followed by a period
- If the image does not show an ingredient list, answer NO and say the ingredients could not be read
- Do not use markdown`
