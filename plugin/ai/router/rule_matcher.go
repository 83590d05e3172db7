package router

import (
	"strings"

	"github.com/hrygo/pharmacontrol/internal/util"
)

// Rule is one entry of the classification cascade.
// Match receives the normalized utterance.
type Rule struct {
	Name   string
	Intent Intent
	Match  func(normalized string) bool
}

// RuleMatcher evaluates an ordered list of rules; the first match wins
// regardless of match length. Phrase sets overlap ("sin existencias" contains
// "existencias"), so the order is part of the contract.
type RuleMatcher struct {
	rules    []Rule
	fallback Intent
}

// Phrase lists, normalized form.
var (
	menuWords        = []string{"menu", "ayuda", "opciones", "help", "options"}
	greetingPhrases  = []string{"hola", "buenos dias", "buenas tardes", "buenas noches", "hi", "hello"}
	generalPhrases   = []string{"reporte general", "reporte de medicamentos", "reporte inventario", "todo el inventario"}
	outOfStockPhrase = []string{"sin existencia", "sin existencias", "sin stock", "agotado", "agotados"}
	inStockPhrases   = []string{"existencias", "existencia", "con stock", "disponibles", "medicamentos disponibles", "inventario disponible"}
	supplierPhrases  = []string{"proveedor", "proveedores", "lista de proveedores"}
	userPhrases      = []string{"usuario", "usuarios", "lista de usuarios", "personal", "colaboradores"}
)

// NewRuleMatcher creates the default cascade.
func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{
		rules: []Rule{
			{Name: "menu", Intent: IntentMenu, Match: equalsAny(menuWords)},
			{Name: "shortcut_1", Intent: IntentGeneralReport, Match: equalsAny([]string{"1"})},
			{Name: "shortcut_2", Intent: IntentOutOfStock, Match: equalsAny([]string{"2"})},
			{Name: "shortcut_3", Intent: IntentInStock, Match: equalsAny([]string{"3"})},
			{Name: "shortcut_4", Intent: IntentSuppliers, Match: equalsAny([]string{"4"})},
			{Name: "shortcut_5", Intent: IntentUsers, Match: equalsAny([]string{"5"})},
			{Name: "shortcut_6", Intent: IntentSearchMedication, Match: equalsAny([]string{"6"})},
			{Name: "greeting", Intent: IntentGreeting, Match: containsAny(greetingPhrases)},
			{Name: "general_report", Intent: IntentGeneralReport, Match: containsAny(generalPhrases)},
			{Name: "out_of_stock", Intent: IntentOutOfStock, Match: containsAny(outOfStockPhrase)},
			{Name: "in_stock", Intent: IntentInStock, Match: containsAny(inStockPhrases)},
			{Name: "suppliers", Intent: IntentSuppliers, Match: containsAny(supplierPhrases)},
			{Name: "users", Intent: IntentUsers, Match: containsAny(userPhrases)},
		},
		fallback: IntentSearchMedication,
	}
}

// Rules returns a copy of the cascade in evaluation order.
func (m *RuleMatcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Match classifies raw input. The second return value names the rule that
// fired, or "fallback".
func (m *RuleMatcher) Match(input string) (Intent, string) {
	normalized := util.Normalize(input)

	for _, rule := range m.rules {
		if rule.Match(normalized) {
			return rule.Intent, rule.Name
		}
	}

	return m.fallback, "fallback"
}

// Classify is a convenience wrapper over the default cascade.
func Classify(input string) Intent {
	intent, _ := defaultMatcher.Match(input)
	return intent
}

var defaultMatcher = NewRuleMatcher()

func equalsAny(words []string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if s == w {
				return true
			}
		}
		return false
	}
}

func containsAny(phrases []string) func(string) bool {
	return func(s string) bool {
		for _, p := range phrases {
			if strings.Contains(s, p) {
				return true
			}
		}
		return false
	}
}
