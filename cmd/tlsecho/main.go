// Command tlsecho is a minimal client/server demonstrating the
// mediator's Stream facade, grounded in
// original_source/examples/echo_server.cpp: a server accepts TLS
// connections in a loop and, on each, echoes whatever it reads until
// the peer shuts down; a
// client connects, sends one line, and prints the echo.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

type command interface {
	Name() string
	Desc() string
	Run([]string) error
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	commands := []command{serverCommand{}, clientCommand{}}
	flag.Usage = func() {
		output := flag.CommandLine.Output()
		fmt.Fprintln(output, "Usage: tlsecho <command> [arguments]")
		fmt.Fprintln(output, "commands:")
		for _, c := range commands {
			fmt.Fprintf(output, "\t%-10s%s\n", c.Name(), c.Desc())
		}
		flag.PrintDefaults()
	}
	flag.Parse()
	cmd := flag.Arg(0)
	for _, c := range commands {
		if c.Name() == cmd {
			if err := c.Run(flag.Args()[1:]); err != nil {
				log.Fatal(err)
			}
			return
		}
	}
	flag.Usage()
	os.Exit(2)
}
