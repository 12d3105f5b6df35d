//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

// Command schemaindex-inspect is an operator tool for a running
// RavenStore: it lists index rules, shows one index's state, and reports
// or (with recover --apply) runs the orphan-recovery pass. It is a
// single invocation against an already-quiescent data directory, not a
// long-lived daemon (no other process is writing to the same raft node
// concurrently).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vertexdb/vertexdb/entities/schemaindex"
	schemaindexuc "github.com/vertexdb/vertexdb/usecases/schemaindex"
)

func main() {
	app := &cli.App{
		Name:  "schemaindex-inspect",
		Usage: "inspect and repair a schema index rule registry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "raft data directory for the local RavenStore node",
				Value: "./data/raven",
			},
			&cli.StringFlag{
				Name:  "node-id",
				Usage: "raft node id to bootstrap as",
				Value: "schemaindex-inspect",
			},
			&cli.StringFlag{
				Name:  "bind-addr",
				Usage: "raft bind address",
				Value: "127.0.0.1:7070",
			},
		},
		Commands: []*cli.Command{
			listCommand(),
			showCommand(),
			recoverCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(c *cli.Context) (*schemaindexuc.RavenStore, error) {
	return schemaindexuc.NewRavenStore(schemaindexuc.RavenStoreConfig{
		NodeID:   c.String("node-id"),
		DataDir:  c.String("data-dir"),
		BindAddr: c.String("bind-addr"),
		Logger:   logrus.New(),
	})
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list every index rule",
		Action: func(c *cli.Context) error {
			store, err := openStore(c)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, rule := range store.IndexesGetAll() {
				printRule(rule)
			}
			for _, rule := range store.UniqueIndexesGetAll() {
				printRule(rule)
			}
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "show the state of one index",
		ArgsUsage: "<labelID> <propertyKeyID>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return cli.Exit("usage: schemaindex-inspect show <labelID> <propertyKeyID>", 1)
			}
			labelID, propertyKeyID, err := parseIDs(c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}

			store, err := openStore(c)
			if err != nil {
				return err
			}
			defer store.Close()

			rule, ok := store.IndexesGetForLabelAndPropertyKey(labelID, propertyKeyID)
			if !ok {
				return cli.Exit(fmt.Sprintf("no rule for %s", schemaindex.NewDescriptor(labelID, propertyKeyID)), 1)
			}
			printRule(rule)
			return nil
		},
	}
}

func recoverCommand() *cli.Command {
	return &cli.Command{
		Name:  "recover",
		Usage: "report, or with --apply drop, orphaned constraint-backing indexes",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "actually run the recovery pass instead of only reporting orphans",
			},
		},
		Action: func(c *cli.Context) error {
			store, err := openStore(c)
			if err != nil {
				return err
			}
			defer store.Close()

			if !c.Bool("apply") {
				var found int
				for _, rule := range store.UniqueIndexesGetAll() {
					if rule.OwnerConstraintID == nil {
						found++
						fmt.Printf("orphan: %s\n", rule.Descriptor)
					}
				}
				if found == 0 {
					fmt.Println("no orphaned constraint-backing indexes")
				}
				return nil
			}

			coordinator := schemaindexuc.NewRecoveryCoordinator(store, logrus.New())
			if err := coordinator.Run(directTransactor{}); err != nil {
				return err
			}
			fmt.Println("recovery pass complete")
			return nil
		},
	}
}

// directTransactor executes its action inline. The registry's own commands
// already commit atomically through raft, so the CLI needs no transaction
// manager layered on top of RavenStore.
type directTransactor struct{}

func (directTransactor) Execute(action func() error) error { return action() }

func printRule(rule schemaindexuc.IndexRule) {
	kind := "regular"
	if rule.Kind == schemaindexuc.ConstraintBacking {
		kind = "constraint-backing"
	}
	fmt.Printf("%-40s kind=%-20s phase=%s\n", rule.Descriptor, kind, rule.State.Phase)
}

func parseIDs(a, b string) (uint64, uint64, error) {
	labelID, err := parseUint(a)
	if err != nil {
		return 0, 0, err
	}
	propertyKeyID, err := parseUint(b)
	if err != nil {
		return 0, 0, err
	}
	return labelID, propertyKeyID, nil
}

func parseUint(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return v, nil
}
