// main.go - rmz: a zippy alternative to rm
//
// (c) 2025- Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package main

import (
	"fmt"
	"os"
	"path"

	fsz "github.com/opencoff/go-fsz"
	flag "github.com/opencoff/pflag"
	"github.com/sirupsen/logrus"
)

var Z = path.Base(os.Args[0])

func main() {
	var force, noPreserveRoot, verbose, help bool

	fs := flag.NewFlagSet(Z, flag.ExitOnError)
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit [False]")
	fs.BoolVarP(&force, "force", "f", false, "Ignore missing files [False]")
	fs.BoolVarP(&noPreserveRoot, "no-preserve-root", "", false, "Do not treat '/' specially [False]")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Show what is being done [False]")
	fs.SetOutput(os.Stdout)

	err := fs.Parse(os.Args[1:])
	if err != nil {
		Die("%s", err)
	}

	if help {
		usage(fs)
	}

	args := fs.Args()
	if len(args) == 0 {
		Die("Usage: %s [options] FILE...\nTry %s -h for more info", Z, Z)
	}

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.Debugf("%s: removing %d root(s)", Z, len(args))

	op := &fsz.RemoveOp{
		Files:          args,
		Force:          force,
		NoPreserveRoot: noPreserveRoot,
	}
	if err = op.Run(); err != nil {
		Die("%s", err)
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Printf(`%s - delete files and directory trees, fast.

Usage: %s [options] FILE...

Options:
`, Z, Z)
	fs.PrintDefaults()
	os.Exit(0)
}

// Die prints an error message and exits with a non-zero code
func Die(f string, args ...any) {
	fmt.Fprintf(os.Stderr, Z+": "+f+"\n", args...)
	os.Exit(1)
}
