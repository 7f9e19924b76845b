// Tether CLI - inspects, serves and generates bindings for a tether registry
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/tether/bindgen"
	"github.com/chazu/tether/bridge"
	"github.com/chazu/tether/manifest"
	"github.com/chazu/tether/server"
	"github.com/chazu/tether/stdbind"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	serveMode := flag.Bool("serve", false, "Start the inspection server (Connect unary over CBOR)")
	servePort := flag.Int("port", 4568, "Inspection server port (used with --serve)")
	genMode := flag.Bool("gen", false, "Generate a bindings file from a tether.toml manifest")
	manifestDir := flag.String("manifest", ".", "Directory holding tether.toml (used with --gen)")
	outPath := flag.String("out", "", "Output path for the generated bindings (default: stdout)")
	pkgName := flag.String("pkg", "", "Package name for the generated bindings (default: the bound package's name)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tether [options]\n\n")
		fmt.Fprintf(os.Stderr, "Builds an engine carrying the standard bindings and inspects or serves it.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tether                      # Print the registry and its digest\n")
		fmt.Fprintf(os.Stderr, "  tether --serve              # Serve the registry on :4568\n")
		fmt.Fprintf(os.Stderr, "  tether --serve --port 8080  # Serve on :8080\n")
		fmt.Fprintf(os.Stderr, "\nBinding generation:\n")
		fmt.Fprintf(os.Stderr, "  tether --gen                # Generate from ./tether.toml to stdout\n")
		fmt.Fprintf(os.Stderr, "  tether --gen --manifest ./geom --out ./geom/bindings_gen.go\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	}

	// Binding generation runs without an engine.
	if *genMode {
		if err := runGen(*manifestDir, *outPath, *pkgName, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	eng := bridge.New()
	exit := eng.Enter()
	err := stdbind.RegisterAll(eng)
	exit()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error registering standard bindings: %v\n", err)
		os.Exit(1)
	}

	if *serveMode {
		addr := fmt.Sprintf(":%d", *servePort)
		srv := server.New(eng)
		defer srv.Stop()
		if err := srv.ListenAndServe(addr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := printRegistry(eng); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printRegistry writes a readable registry summary and the content digest,
// the same view the inspection server serves.
func printRegistry(eng *bridge.Engine) error {
	desc := eng.Describe()
	digest, err := eng.RegistryDigest()
	if err != nil {
		return err
	}

	fmt.Printf("Engine %s\n\n", desc.EngineID)

	fmt.Printf("Classes (%d):\n", len(desc.Classes))
	for _, c := range desc.Classes {
		fmt.Printf("  %s (id %d, %s)\n", c.Name, c.ID, c.Type)
		if c.Base != "" {
			fmt.Printf("    base %s\n", c.Base)
		}
		for _, m := range c.Methods {
			fmt.Printf("    method %s%s\n", m.Name, overloadSuffix(len(m.Overloads)))
		}
		for _, p := range c.Properties {
			if p.ReadOnly {
				fmt.Printf("    property %s (read-only)\n", p.Name)
			} else {
				fmt.Printf("    property %s\n", p.Name)
			}
		}
	}

	fmt.Printf("Enums (%d):\n", len(desc.Enums))
	for _, en := range desc.Enums {
		fmt.Printf("  %s (id %d, %d entries)\n", en.Name, en.ID, len(en.Entries))
	}

	fmt.Printf("\nRegistry digest: %s\n", digest)
	return nil
}

func overloadSuffix(n int) string {
	if n <= 1 {
		return ""
	}
	return fmt.Sprintf(" [%d overloads]", n)
}

// runGen loads the manifest, introspects the bound package and writes the
// generated bindings file.
func runGen(dir, out, pkg string, verbose bool) error {
	m, err := manifest.Load(dir)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Loaded %s: module %s binding %s\n", manifest.FileName, m.Module.Name, m.Module.Package)
	}

	model, err := bindgen.BuildModel(m)
	if err != nil {
		return err
	}
	if pkg == "" {
		pkg = model.Name
	}

	src, err := bindgen.Generate(model, pkg)
	if err != nil {
		return err
	}

	if out == "" {
		fmt.Print(src)
		return nil
	}
	if err := os.WriteFile(out, []byte(src), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	if verbose {
		fmt.Printf("Wrote %s (%d classes, %d enums)\n", out, len(model.Classes), len(model.Enums))
	}
	return nil
}
