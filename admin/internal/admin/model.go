package admin

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/workflow"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/compiler"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
)

// ValidateModel loads the semantic model at path and prints the catalog it
// exposes.
func ValidateModel(w io.Writer, path string) (*registry.Registry, error) {
	reg, err := registry.Load(path)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "%s: %d models, %d metrics, %d dimensions, %d relationships\n\n",
		reg.Source(), len(reg.Models()), len(reg.Metrics()), len(reg.Dimensions()), len(reg.Relationships()))
	fmt.Fprintln(w, reg.Describe())
	return reg, nil
}

// VerifyCatalog checks that every table and column the model references
// exists in the database.
func VerifyCatalog(ctx context.Context, log *slog.Logger, reg *registry.Registry, catalog registry.CatalogReader) error {
	log.Info("verifying semantic model against database catalog", "models", len(reg.Models()))
	if err := reg.VerifyCatalog(ctx, catalog); err != nil {
		return err
	}
	log.Info("semantic model matches database catalog")
	return nil
}

// CompileIntent validates an intent given as JSON and prints the SQL it
// compiles to, without running it.
func CompileIntent(w io.Writer, reg *registry.Registry, intentJSON string) error {
	intent, err := workflow.ParseIntent(intentJSON)
	if err != nil {
		return err
	}
	validated, err := governance.Validate(intent, reg)
	if err != nil {
		return err
	}
	q, err := compiler.Compile(validated)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, q.SQL)
	for i, arg := range q.Args {
		fmt.Fprintf(w, "-- $%d = %s\n", i+1, workflow.FormatValue(arg))
	}
	return nil
}
