package diffengine

import "strings"

// objectTypePrecedence is the ascending apply-order precedence table,
// mirroring the CASE expression the state store orders composite fetches
// by.
var objectTypePrecedence = map[string]int{
	"TABLE":        100,
	"SEQUENCE":     200,
	"VIEW":         300,
	"PACKAGE":      400,
	"PACKAGE BODY": 500,
	"PROCEDURE":    600,
	"FUNCTION":     700,
	"INDEX":        800,
	"TRIGGER":      900,
}

// ApplyOrderKey returns the sortable apply-order key for a Changeset: a
// pure CREATE (targetDDLNull) keeps the type's precedence; a DROP
// (sourceDDLNull) negates it so drops within a type class run last-first.
// Reverse of this ordering (negate the key) gives the rollback order.
func ApplyOrderKey(objectType string, targetDDLNull bool) int {
	precedence, ok := objectTypePrecedence[strings.ToUpper(objectType)]
	if !ok {
		precedence = 1000
	}
	if targetDDLNull {
		return precedence
	}
	return -precedence
}
