package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/rurair-map/internal/catalog"
	"github.com/mohammed-shakir/rurair-map/internal/colorscale"
	"github.com/mohammed-shakir/rurair-map/internal/core/config"
	"github.com/mohammed-shakir/rurair-map/internal/core/executor"
	"github.com/mohammed-shakir/rurair-map/internal/core/model"
	"github.com/mohammed-shakir/rurair-map/internal/dispatch"
	"github.com/mohammed-shakir/rurair-map/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/rurair-map/internal/invalidation/kafkapublisher"
	"github.com/mohammed-shakir/rurair-map/internal/legend"
	"github.com/mohammed-shakir/rurair-map/internal/params"
	"github.com/mohammed-shakir/rurair-map/internal/store/pgstore"
)

const queryTimeout = 20 * time.Second

// printOut writes v as indented JSON, or YAML when --yaml is set.
func printOut(cmd *cobra.Command, v any) error {
	w := cmd.OutOrStdout()
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func openEngine(cmd *cobra.Command) (*catalog.Catalog, *executor.Executor, func(), error) {
	dsn, _ := cmd.Flags().GetString("database-url")
	db, err := pgstore.New(cmd.Context(), dsn, queryTimeout, pgstore.WithMaxConns(2))
	if err != nil {
		return nil, nil, nil, err
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	exec := executor.New(log, db)
	return catalog.New(exec, 0, log), exec, db.Close, nil
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories and their layers from the data engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, _, closeFn, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			type entry struct {
				Name   string            `json:"name" yaml:"name"`
				Kind   string            `json:"kind" yaml:"kind"`
				Layers []model.LayerInfo `json:"layers" yaml:"layers"`
			}
			cats, err := cat.Categories(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]entry, 0, len(cats))
			for _, c := range cats {
				layers, err := cat.Layers(cmd.Context(), c.Name)
				if err != nil {
					return fmt.Errorf("layers for %s: %w", c.Name, err)
				}
				out = append(out, entry{Name: c.Name, Kind: string(c.Kind), Layers: layers})
			}
			return printOut(cmd, out)
		},
	}
}

// readParams decodes --params, or stdin when the value is "-".
func readParams(cmd *cobra.Command) (map[string]any, error) {
	src, _ := cmd.Flags().GetString("params")
	var r io.Reader = strings.NewReader(src)
	if src == "-" {
		r = cmd.InOrStdin()
	}
	raw := map[string]any{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return raw, nil
}

type validation struct {
	Category string         `json:"category" yaml:"category"`
	Kind     string         `json:"kind" yaml:"kind"`
	Clean    map[string]any `json:"clean" yaml:"clean"`
	Function string         `json:"function" yaml:"function"`
	SQL      string         `json:"sql" yaml:"sql"`
	Call     string         `json:"call" yaml:"call"`
}

func validate(category string, kind model.CategoryKind, raw map[string]any) (validation, error) {
	if !kind.Valid() {
		return validation{}, fmt.Errorf("unknown kind %q (signal or pollution)", kind)
	}
	cat := model.Category{Name: category, Kind: kind}
	clean, err := params.Validate(kind, raw)
	if err != nil {
		return validation{}, err
	}
	call, err := dispatch.Build(cat, clean)
	if err != nil {
		return validation{}, err
	}
	stmt, err := call.SQL()
	if err != nil {
		return validation{}, err
	}
	return validation{
		Category: category,
		Kind:     string(kind),
		Clean:    clean.Raw(),
		Function: call.Name,
		SQL:      stmt,
		Call:     call.String(),
	}, nil
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate map parameters offline and show the stored-function call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readParams(cmd)
			if err != nil {
				return err
			}
			category, _ := cmd.Flags().GetString("category")
			kind, _ := cmd.Flags().GetString("kind")
			v, err := validate(category, model.CategoryKind(kind), raw)
			if err != nil {
				return err
			}
			return printOut(cmd, v)
		},
	}
	cmd.Flags().StringP("category", "c", "Cobertura", "category name")
	cmd.Flags().StringP("kind", "k", string(model.KindSignal), "category kind: signal or pollution")
	cmd.Flags().StringP("params", "p", "{}", `parameters as JSON, "-" reads stdin`)
	return cmd
}

func newLegendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legend <kind>",
		Short: "Render the legend for a measurement kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("palette-file")
			reg, err := colorscale.LoadFile(file)
			if err != nil {
				return err
			}
			sc, ok := reg.Scale(args[0])
			if !ok {
				return fmt.Errorf("no palette for %q (have %s)", args[0], strings.Join(reg.Kinds(), ", "))
			}
			unit, _ := cmd.Flags().GetString("unit")
			w, err := legend.ForScale(sc, unit)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return printOut(cmd, w)
			}
			return writePNG(out, w)
		},
	}
	cmd.Flags().String("unit", "", "unit shown in the title (palette unit when empty)")
	cmd.Flags().StringP("out", "o", "", "write a PNG to this path instead of printing the layout")
	return cmd
}

func writePNG(path string, w legend.Widget) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return w.WritePNG(f)
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <category>",
		Short: "Run a map query against the data engine and print the GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readParams(cmd)
			if err != nil {
				return err
			}
			cat, exec, closeFn, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()
			prep, err := dispatch.NewRouter(cat).Prepare(ctx, params.Request{Category: args[0], Raw: raw})
			if err != nil {
				return err
			}
			body, err := exec.Execute(ctx, prep.Call)
			if err != nil {
				return err
			}
			if len(body) == 0 {
				body = []byte(`{"type":"FeatureCollection","features":[]}`)
			}
			var v any
			if err := json.Unmarshal(body, &v); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			return printOut(cmd, v)
		},
	}
	cmd.Flags().StringP("params", "p", "{}", `parameters as JSON, "-" reads stdin`)
	return cmd
}

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "refresh <signal|pollution|metadata|all>",
		Short:     "Publish a dataset refresh event so running servers drop stale cache entries",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"signal", "pollution", "metadata", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := config.FromEnv().Invalidation
			if v, _ := cmd.Flags().GetString("brokers"); v != "" {
				inv.Brokers = v
			}
			if v, _ := cmd.Flags().GetString("topic"); v != "" {
				inv.Topic = v
			}
			kc := kafkaconsumer.FromConfig(inv)
			pub, err := kafkapublisher.New(kc.Brokers, kc.Topic)
			if err != nil {
				return err
			}
			defer func() { _ = pub.Close() }()

			category, _ := cmd.Flags().GetString("category")
			ev, err := pub.Refresh(args[0], category)
			if err != nil {
				return err
			}
			return printOut(cmd, ev)
		},
	}
	cmd.Flags().String("brokers", "", "comma separated brokers (KAFKA_BROKERS when empty)")
	cmd.Flags().String("topic", "", "refresh topic (KAFKA_TOPIC when empty)")
	cmd.Flags().StringP("category", "c", "", "limit the refresh to one category")
	return cmd
}
