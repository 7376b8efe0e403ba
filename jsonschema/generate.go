package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/relychan/goutils"
	authdigest "github.com/srgoldman/auth-digest"
	"github.com/srgoldman/auth-digest/authc/authscheme"
	"github.com/srgoldman/auth-digest/authc/digestauth"
)

func main() {
	err := jsonSchemaConfiguration()
	if err != nil {
		panic(fmt.Errorf("failed to write jsonschema for RestyConfig: %w", err))
	}
}

func jsonSchemaConfiguration() error {
	r := new(jsonschema.Reflector)

	for pkg, dir := range map[string]string{
		"github.com/srgoldman/auth-digest":                  "../",
		"github.com/srgoldman/auth-digest/authc/digestauth": "../authc/digestauth",
	} {
		err := r.AddGoComments(pkg, dir, jsonschema.WithFullComment())
		if err != nil {
			return err
		}
	}

	reflectSchema := r.Reflect(authdigest.RestyConfig{})

	digestSchema := r.Reflect(digestauth.DigestAuthConfig{})
	for key, def := range digestSchema.Definitions {
		if _, ok := reflectSchema.Definitions[key]; !ok {
			reflectSchema.Definitions[key] = def
		}
	}

	// custom schema types
	reflectSchema.Definitions["Duration"] = &jsonschema.Schema{
		Type:        "string",
		Description: "Duration string",
		Pattern:     "^((([0-9]+h)?([0-9]+m)?([0-9]+s))|(([0-9]+h)?([0-9]+m))|([0-9]+h))$",
	}
	reflectSchema.Definitions["RestlyAuthConfig"] = &jsonschema.Schema{
		Description: "Define authentication configurations",
		OneOf: []*jsonschema.Schema{
			{
				Description: "Configurations for the http authentication using the digest scheme",
				Ref:         "#/$defs/DigestAuthConfig",
			},
		},
	}
	reflectSchema.Definitions["HTTPClientAuthType"] = &jsonschema.Schema{
		Type:        "string",
		Description: "Supported authentication schemes",
		Enum:        goutils.ToAnySlice(authscheme.GetSupportedHTTPClientAuthTypes()),
	}

	schemaBytes, err := json.MarshalIndent(reflectSchema, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join("jsonschema", "authdigest.schema.json"), schemaBytes, 0o644)
}
