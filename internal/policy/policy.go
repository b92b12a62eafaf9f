// Package policy define el registro en memoria de policies nombradas:
// el documento Policy, los snapshots inmutables y las mutaciones que los hacen avanzar.
package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// maxNameBytes limita el largo de un nombre de policy.
const maxNameBytes = 255

// invalidNameChars no pueden aparecer en un nombre.
const invalidNameChars = `\/*?"<>|,# `

// Policy es un documento de configuración opaco con nombre.
// Definition es JSON crudo; este paquete solo exige que sea un objeto.
type Policy struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// NamedPolicy es el par (nombre, policy) que devuelven las lecturas.
type NamedPolicy struct {
	Name   string `json:"name"`
	Policy Policy `json:"policy"`
}

// Equal compara nombre y definición (JSON compactado).
func (p Policy) Equal(o Policy) bool {
	if p.Name != o.Name {
		return false
	}
	return bytes.Equal(compact(p.Definition), compact(o.Definition))
}

func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// ValidateName aplica las reglas de nombre usadas por put.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidPolicy)
	}
	if len(name) > maxNameBytes {
		return fmt.Errorf("%w: name [%s] is longer than %d bytes", ErrInvalidPolicy, name, maxNameBytes)
	}
	if strings.ToLower(name) != name {
		return fmt.Errorf("%w: name [%s] must be lowercase", ErrInvalidPolicy, name)
	}
	switch name[0] {
	case '_', '-', '+':
		return fmt.Errorf("%w: name [%s] must not start with '%c'", ErrInvalidPolicy, name, name[0])
	}
	if strings.ContainsAny(name, invalidNameChars) || strings.ContainsAny(name, "\t\r\n") {
		return fmt.Errorf("%w: name [%s] contains invalid characters", ErrInvalidPolicy, name)
	}
	return nil
}

// Validate revisa nombre y que la definición sea un objeto JSON.
func (p Policy) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(p.Definition)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return fmt.Errorf("%w: definition of [%s] must be a JSON object", ErrInvalidPolicy, p.Name)
	}
	return nil
}
