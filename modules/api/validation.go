package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/example/taskflow/domain/apperr"
	"github.com/gofiber/fiber/v2"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// MsgInvalidBody is rendered when a body is not a JSON object.
const MsgInvalidBody = "Invalid request body"

// Body schemas check shape and types only. Presence and length rules
// live in the domain so their messages stay stable.
var (
	signupSchema = jsonschema.MustCompileString("taskflow://schemas/signup.json", `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"email": {"type": "string"},
			"password": {"type": "string"}
		}
	}`)

	loginSchema = jsonschema.MustCompileString("taskflow://schemas/login.json", `{
		"type": "object",
		"properties": {
			"email": {"type": "string"},
			"password": {"type": "string"}
		}
	}`)

	createTaskSchema = jsonschema.MustCompileString("taskflow://schemas/create-task.json", `{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"description": {"type": "string"},
			"deadline": {"type": "string"},
			"priority": {"type": ["string", "null"]}
		}
	}`)

	updateTaskSchema = jsonschema.MustCompileString("taskflow://schemas/update-task.json", `{
		"type": "object",
		"properties": {
			"title": {"type": ["string", "null"]},
			"description": {"type": ["string", "null"]},
			"deadline": {"type": ["string", "null"]},
			"priority": {"type": ["string", "null"]},
			"status": {"type": ["string", "null"]}
		}
	}`)
)

// decodeBody validates the request body against schema and decodes it
// into dst. An empty body counts as an empty object.
func decodeBody(c *fiber.Ctx, schema *jsonschema.Schema, dst any) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		body = []byte("{}")
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return apperr.Validation(MsgInvalidBody)
	}
	if err := schema.Validate(doc); err != nil {
		return apperr.Validation(schemaMessage(err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation(MsgInvalidBody)
	}
	return nil
}

// schemaMessage renders the first leaf cause of a schema failure.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return MsgInvalidBody
	}

	leaf := firstLeaf(ve)
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" {
		return MsgInvalidBody + ": " + leaf.Message
	}
	return MsgInvalidBody + ": " + strings.ReplaceAll(field, "/", ".") + " " + leaf.Message
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
