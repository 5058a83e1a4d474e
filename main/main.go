/*openhdm runs a shallow-water channel project.

	openhdm [flags] project.in

The project file lists the domains of the run; each domain directory
holds a channel.config control file and, for parents, a mesh table. Run
parameters can come from a gcfg control file via -Config or from the
-Proc flags directly.
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	openhdm "github.com/atdyer/OpenHDM"
	"github.com/atdyer/OpenHDM/config"
	"github.com/atdyer/OpenHDM/input"
	"github.com/atdyer/OpenHDM/report"
	"github.com/atdyer/OpenHDM/shallow"
)

func main() {
	var (
		configPath, logPath    string
		nProcTotal, nProcChild int
		logLevel               int
		exampleConfig          bool
	)

	flag.StringVar(&configPath, "Config", "",
		"Run-control file. Flags override its values.")
	flag.IntVar(&nProcTotal, "Proc", 0,
		"Total processor budget for the run.")
	flag.IntVar(&nProcChild, "ProcChild", 0,
		"Share of the budget reserved for child domains.")
	flag.IntVar(&logLevel, "LogLevel", -1,
		"Verbosity of the run log.")
	flag.StringVar(&logPath, "Log", "",
		"Location to write log statements to. Default is stderr.")
	flag.BoolVar(&exampleConfig, "ExampleConfig", false,
		"Print an example run-control file and exit.")
	flag.Parse()

	if exampleConfig {
		fmt.Println(config.ExampleRunFile)
		return
	}

	if flag.NArg() != 1 {
		log.Fatalf("Usage: %s [flags] project.in", os.Args[0])
	}

	con := config.DefaultRun()
	if configPath != "" {
		var err error
		con, err = config.ReadRunConfig(configPath)
		if err != nil {
			log.Fatal(err.Error())
		}
	}
	if nProcTotal > 0 {
		con.ProcTotal = nProcTotal
	}
	if nProcChild > 0 {
		con.ProcChild = nProcChild
	}
	if logLevel >= 0 {
		con.LogLevel = logLevel
	}
	if logPath != "" {
		con.LogFile = logPath
	}

	out := os.Stderr
	if con.LogFile != "" {
		f, err := os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer f.Close()
		out = f
	}
	rep := report.New(out, con.LogLevel)

	pi, err := input.ReadProjectFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err.Error())
	}

	p, err := openhdm.NewProject(pi, shallow.NewDomain, rep)
	if err != nil {
		log.Fatal(err.Error())
	}

	if err := p.Run(con.ProcTotal, con.ProcChild); err != nil {
		log.Fatal(err.Error())
	}
}
