package commands

import (
	"regexp"
	"strings"
)

// CustomPrefix marks a message carrying several set-commands.
const CustomPrefix = "/custom"

var (
	// A digit directly followed by "/letter" is the boundary between two
	// commands typed without a space, as in "/setturnoverclear200/setplall4000".
	gluedCommandRe = regexp.MustCompile(`(\d)/([A-Za-z])`)
	// A command starts at the beginning of the text or after whitespace, so
	// values such as "Trinidad/Tobago" keep their slash.
	pairRe         = regexp.MustCompile(`(?:^|\s)/([A-Za-z]+)(?:\s*([^/\s]\S*))?`)
	identifierRe   = regexp.MustCompile(`\b\d{8}\b`)
	bareIDRe       = regexp.MustCompile(`^\d{8}$`)
)

// Pair is one command token and its value. Value is empty when the command
// was given without one.
type Pair struct {
	Command string
	Value   string
}

// Message is the result of parsing a multi-command message.
type Message struct {
	// Custom is true when the message started with the /custom marker.
	Custom bool
	// Pairs holds the command tokens in message order. Commands are
	// lower-cased; they are not checked against any alias table.
	Pairs []Pair
	// Identifier is the first standalone 8-digit number in the message.
	Identifier string
}

// ParseMulti extracts every /command[value] pair from raw. Commands may be
// separated by whitespace or glued together after a numeric value; a slash
// anywhere else belongs to the value.
func ParseMulti(raw string) Message {
	text, custom := stripCustom(strings.TrimSpace(raw))
	text = gluedCommandRe.ReplaceAllString(text, "$1 /$2")

	msg := Message{Custom: custom}
	for _, m := range pairRe.FindAllStringSubmatch(text, -1) {
		msg.Pairs = append(msg.Pairs, Pair{
			Command: strings.ToLower(m[1]),
			Value:   m[2],
		})
	}
	msg.Identifier, _ = FindIdentifier(text)
	return msg
}

// stripCustom removes a leading /custom marker (any case) and reports
// whether it was present. "/customer" is not a marker.
func stripCustom(text string) (string, bool) {
	if len(text) < len(CustomPrefix) || !strings.EqualFold(text[:len(CustomPrefix)], CustomPrefix) {
		return text, false
	}
	rest := text[len(CustomPrefix):]
	if rest != "" && isLetter(rest[0]) {
		return text, false
	}
	rest = strings.TrimSpace(rest)
	if rest != "" && !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest, true
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// FindIdentifier returns the first standalone 8-digit number in text.
func FindIdentifier(text string) (string, bool) {
	id := identifierRe.FindString(text)
	return id, id != ""
}

// IsIdentifierMessage reports whether text is nothing but an 8-digit
// identifier.
func IsIdentifierMessage(text string) bool {
	return bareIDRe.MatchString(strings.TrimSpace(text))
}

// IsCustom reports whether text starts with the /custom marker.
func IsCustom(text string) bool {
	_, custom := stripCustom(strings.TrimSpace(text))
	return custom
}

// CountCommands returns the number of /command tokens in text after glued
// commands are separated.
func CountCommands(text string) int {
	text = gluedCommandRe.ReplaceAllString(text, "$1 /$2")
	return len(pairRe.FindAllStringIndex(text, -1))
}
