// Package router classifies chat utterances into assistant intents.
package router

import "context"

// RouterService defines the intent classification interface consumed by the
// chat service.
type RouterService interface {
	// ClassifyIntent maps a raw utterance to an intent.
	// Classification is rule-based and never fails for well-formed input;
	// the error is reserved for cancelled contexts.
	ClassifyIntent(ctx context.Context, input string) (Intent, error)
}

// Intent represents the type of user intent.
type Intent string

const (
	IntentGreeting         Intent = "greeting"
	IntentMenu             Intent = "menu"
	IntentGeneralReport    Intent = "general_report"
	IntentOutOfStock       Intent = "out_of_stock"
	IntentInStock          Intent = "in_stock"
	IntentSuppliers        Intent = "suppliers"
	IntentUsers            Intent = "users"
	IntentSearchMedication Intent = "search_medication"
)

