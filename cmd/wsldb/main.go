// Package main is the wsldb command-line tool: `schema check` validates
// a schema document, `db parse`, `db format` and `db check` run the row
// codec and integrity checker over a database, and `convert
// to-text/to-json/from-text/from-json` drive the shape engine between
// the relational and tree forms. All of the work happens in the library
// packages; the commands only read files, call entry points, and write
// results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wsldb/database"
	"wsldb/integrity"
	"wsldb/objjson"
	"wsldb/objtext"
	"wsldb/rows"
	"wsldb/schema"
	"wsldb/shape"
)

type dbFlags struct {
	schemaFile   string
	outFile      string
	inlineSchema bool
}

type convertFlags struct {
	schemaFile string
	shapeFile  string
	outFile    string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "wsldb",
		Short: "WSL database tool",
	}

	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(convertCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Schema operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <schema.wsl>",
		Short: "Parse and validate a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if _, err := schema.Parse(string(text)); err != nil {
				return err
			}
			fmt.Println("schema OK")
			return nil
		},
	})
	return cmd
}

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}
	cmd.AddCommand(dbParseCmd())
	cmd.AddCommand(dbFormatCmd())
	cmd.AddCommand(dbCheckCmd())
	return cmd
}

func dbParseCmd() *cobra.Command {
	flags := &dbFlags{}
	cmd := &cobra.Command{
		Use:   "parse <db.wsl>",
		Short: "Parse a database and report its table sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := loadDatabase(flags.schemaFile, args[0])
			if err != nil {
				return err
			}
			for _, name := range db.Schema.SortedTableNames() {
				fmt.Printf("%s: %d rows\n", name, len(db.RowsOf(name)))
			}
			return nil
		},
	}
	addDBFlags(cmd, flags)
	return cmd
}

func dbFormatCmd() *cobra.Command {
	flags := &dbFlags{}
	cmd := &cobra.Command{
		Use:   "format <db.wsl>",
		Short: "Parse a database and re-emit it in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := loadDatabase(flags.schemaFile, args[0])
			if err != nil {
				return err
			}
			out, err := database.Format(db, flags.inlineSchema)
			if err != nil {
				return err
			}
			return writeOutput(flags.outFile, out)
		},
	}
	addDBFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.inlineSchema, "inline-schema", false, "Emit the schema inline as % lines")
	return cmd
}

func dbCheckCmd() *cobra.Command {
	flags := &dbFlags{}
	cmd := &cobra.Command{
		Use:   "check <db.wsl>",
		Short: "Check key and foreign key integrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := loadDatabase(flags.schemaFile, args[0])
			if err != nil {
				return err
			}
			if err := integrity.Check(db); err != nil {
				return err
			}
			fmt.Println("integrity OK")
			return nil
		},
	}
	addDBFlags(cmd, flags)
	return cmd
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert between relational and tree forms through a shape spec",
	}
	cmd.AddCommand(convertSubCmd("to-text", "Convert a database to the indented text form",
		func(env *convertEnv, input string) (string, error) {
			db, err := database.Parse(env.schema, input)
			if err != nil {
				return "", err
			}
			obj, err := rows.Rows2Objects(db, env.shape)
			if err != nil {
				return "", err
			}
			return objtext.Objects2Text(env.schema, env.shape, obj)
		}))
	cmd.AddCommand(convertSubCmd("to-json", "Convert a database to JSON",
		func(env *convertEnv, input string) (string, error) {
			db, err := database.Parse(env.schema, input)
			if err != nil {
				return "", err
			}
			obj, err := rows.Rows2Objects(db, env.shape)
			if err != nil {
				return "", err
			}
			out, err := objjson.Objects2JSON(env.schema, env.shape, obj)
			if err != nil {
				return "", err
			}
			return out + "\n", nil
		}))
	cmd.AddCommand(convertSubCmd("from-text", "Convert the indented text form to a database",
		func(env *convertEnv, input string) (string, error) {
			obj, err := objtext.Text2Objects(env.schema, env.shape, input)
			if err != nil {
				return "", err
			}
			db, err := rows.Objects2Rows(env.schema, env.shape, obj)
			if err != nil {
				return "", err
			}
			return database.Format(db, false)
		}))
	cmd.AddCommand(convertSubCmd("from-json", "Convert JSON to a database",
		func(env *convertEnv, input string) (string, error) {
			obj, err := objjson.JSON2Objects(env.schema, env.shape, input)
			if err != nil {
				return "", err
			}
			db, err := rows.Objects2Rows(env.schema, env.shape, obj)
			if err != nil {
				return "", err
			}
			return database.Format(db, false)
		}))
	return cmd
}

type convertEnv struct {
	schema *schema.Schema
	shape  *shape.Node
}

func convertSubCmd(use, short string, run func(env *convertEnv, input string) (string, error)) *cobra.Command {
	flags := &convertFlags{}
	cmd := &cobra.Command{
		Use:   use + " <input>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := loadConfig()
			schemaFile := orDefault(flags.schemaFile, cfg.Schema)
			shapeFile := orDefault(flags.shapeFile, cfg.Shape)
			if schemaFile == "" || shapeFile == "" {
				return fmt.Errorf("both --schema and --shape are required (or set them in %s)", configFile)
			}
			schemaText, err := os.ReadFile(schemaFile)
			if err != nil {
				return err
			}
			s, err := schema.Parse(string(schemaText))
			if err != nil {
				return err
			}
			shapeText, err := os.ReadFile(shapeFile)
			if err != nil {
				return err
			}
			spec, err := shape.ParseSpec(s, string(shapeText))
			if err != nil {
				return err
			}
			input, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := run(&convertEnv{schema: s, shape: spec}, string(input))
			if err != nil {
				return err
			}
			return writeOutput(flags.outFile, out)
		},
	}
	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "Schema file")
	cmd.Flags().StringVar(&flags.shapeFile, "shape", "", "Shape spec file")
	cmd.Flags().StringVarP(&flags.outFile, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func addDBFlags(cmd *cobra.Command, flags *dbFlags) {
	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "Schema file (omit if the database carries an inline schema)")
	cmd.Flags().StringVarP(&flags.outFile, "output", "o", "", "Output file (default stdout)")
}

// loadDatabase reads a database document, resolving the schema from the
// given file, the config default, or the document's inline schema.
func loadDatabase(schemaFile, dbFile string) (*database.Database, error) {
	schemaFile = orDefault(schemaFile, loadConfig().Schema)
	var s *schema.Schema
	if schemaFile != "" {
		text, err := os.ReadFile(schemaFile)
		if err != nil {
			return nil, err
		}
		s, err = schema.Parse(string(text))
		if err != nil {
			return nil, err
		}
	}
	text, err := os.ReadFile(dbFile)
	if err != nil {
		return nil, err
	}
	return database.Parse(s, string(text))
}

func writeOutput(outFile, content string) error {
	if outFile == "" {
		fmt.Print(content)
		return nil
	}
	return os.WriteFile(outFile, []byte(content), 0o644)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
