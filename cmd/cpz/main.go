// main.go - cpz: a zippy alternative to cp
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
	"path/filepath"
	"strings"

	fsz "github.com/opencoff/go-fsz"
	flag "github.com/opencoff/pflag"
	"github.com/sirupsen/logrus"
)

var Z = path.Base(os.Args[0])

func main() {
	var force, reverse, deref, follow, link, preserve, verbose, help bool

	fs := flag.NewFlagSet(Z, flag.ExitOnError)
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit [False]")
	fs.BoolVarP(&force, "force", "f", false, "Overwrite existing files [False]")
	fs.BoolVarP(&reverse, "reverse-args", "t", false, "Reverse argument order: TO comes first [False]")
	fs.BoolVarP(&deref, "dereference", "L", false, "Copy symlink targets, not the links [False]")
	fs.BoolVarP(&follow, "follow-symlinks", "", false, "Alias of --dereference [False]")
	fs.BoolVarP(&link, "hard-link", "l", false, "Hard-link files instead of copying [False]")
	fs.BoolVarP(&preserve, "preserve", "p", false, "Preserve mode, ownership, times, xattr [False]")
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
	if len(args) < 2 {
		Die("Usage: %s [options] FROM... TO\nTry %s -h for more info", Z, Z)
	}

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	var from []string
	var to string
	if reverse {
		to, from = args[0], args[1:]
	} else {
		from, to = args[:len(args)-1], args[len(args)-1]
	}

	// multiple sources - or a target whose shape names a directory -
	// copy *into* the target by appending each source's basename
	into := copyInto(from, to)

	pairs := make([]fsz.CopyPair, 0, len(from))
	for _, f := range from {
		dst := to
		if into {
			dst = filepath.Join(to, filepath.Base(strings.TrimSuffix(f, "/")))
		}
		logrus.Debugf("%s: %s -> %s", Z, f, dst)
		pairs = append(pairs, fsz.CopyPair{From: f, To: dst})
	}

	op := &fsz.CopyOp{
		Files:          pairs,
		Force:          force,
		FollowSymlinks: deref || follow,
		HardLink:       link,
		Preserve:       preserve,
	}
	if err = op.Run(); err != nil {
		Die("%s", err)
	}
}

// copyInto reports whether the sources land *inside* 'to' rather than
// *at* it: more than one source, or a target ending in a separator,
// "." or "..".
func copyInto(from []string, to string) bool {
	if len(from) > 1 {
		return true
	}
	if strings.HasSuffix(to, "/") {
		return true
	}
	switch filepath.Base(to) {
	case ".", "..":
		return true
	}
	return false
}

func usage(fs *flag.FlagSet) {
	fmt.Printf(`%s - copy files and directory trees, fast.

Usage: %s [options] FROM... TO

If more than one FROM is given, or TO ends with a path separator,
"." or "..", sources are copied into TO under their own basenames.

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
