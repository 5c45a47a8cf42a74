package composer

import (
	"encoding/json"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// OutputSchema describes the JSON object expected for one day.
func OutputSchema() *jsonschema.Schema {
	minQty := 0.0
	str := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }

	ingredient := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":           str(),
			"quantity_grams": {Type: "number", Minimum: &minQty},
		},
		Required: []string{"name", "quantity_grams"},
	}

	meal := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":                      str(),
			"meal_type":                 str(),
			"uses_existing_ingredients": {Type: "array", Items: str()},
			"ingredients":               {Type: "array", Items: ingredient},
			"steps":                     {Type: "array", Items: str()},
		},
		Required: []string{"name", "meal_type", "uses_existing_ingredients", "ingredients", "steps"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"meals": {Type: "array", Items: meal},
		},
		Required: []string{"meals"},
	}
}

var (
	schemaOnce sync.Once
	schemaJSON string
)

// OutputSchemaJSON is OutputSchema marshalled once.
func OutputSchemaJSON() string {
	schemaOnce.Do(func() {
		b, err := json.Marshal(OutputSchema())
		if err != nil {
			panic("composer: marshal output schema: " + err.Error())
		}
		schemaJSON = string(b)
	})
	return schemaJSON
}
