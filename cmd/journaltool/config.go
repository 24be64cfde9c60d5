package main

import (
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/backends"
	"github.com/jessevdk/go-flags"
)

const (
	listSubCmd    = "list"
	fuseSubCmd    = "fuse"
	migrateSubCmd = "migrate"
)

type listConfig struct {
	DBType     string `long:"dbtype" description:"Journal backend {pebble, pebble-v1, leveldb}"`
	Status     string `long:"status" description:"Only list entries with this status {pending, accepted, rejected}"`
	CacheMiB   int    `long:"cache" description:"Database cache size in MiB"`
	Positional struct {
		Path string `positional-arg-name:"journal" required:"yes"`
	} `positional-args:"yes"`
}

type fuseConfig struct {
	Strategy     string `long:"strategy" description:"Conflict strategy {overwrite, keep}"`
	Batch        int    `long:"batch" description:"Keys per write batch"`
	BatchMiB     int    `long:"batch-bytes" description:"Flush a batch once it holds this many MiB"`
	CacheMiB     int    `long:"cache" description:"Database cache size in MiB"`
	CompactAfter bool   `long:"compact" description:"Compact the destination afterwards"`
	Positional   struct {
		Dest    string   `positional-arg-name:"dest" required:"yes"`
		Sources []string `positional-arg-name:"src" required:"1"`
	} `positional-args:"yes"`
}

type migrateConfig struct {
	From       string `long:"from" description:"Source journal backend {pebble, pebble-v1, leveldb}"`
	To         string `long:"to" description:"Destination journal backend {pebble, pebble-v1, leveldb}"`
	Overwrite  bool   `long:"overwrite" description:"Replace entries that already exist in the destination"`
	CacheMiB   int    `long:"cache" description:"Database cache size in MiB"`
	Positional struct {
		Source string `positional-arg-name:"src" required:"yes"`
		Dest   string `positional-arg-name:"dest" required:"yes"`
	} `positional-args:"yes"`
}

func parseCommandLine(args []string) (subCommand string, config interface{}, err error) {
	parser := flags.NewParser(&struct{}{}, flags.Default)

	listConf := &listConfig{DBType: backends.Pebble, CacheMiB: 8}
	parser.AddCommand(listSubCmd, "Lists journaled solutions",
		"Prints every journaled solution as a JSON line", listConf)

	fuseConf := &fuseConfig{Strategy: "overwrite", Batch: 1000, BatchMiB: 8, CacheMiB: 8}
	parser.AddCommand(fuseSubCmd, "Fuses LevelDB journals",
		"Merges the solutions of one or more LevelDB journals into a destination LevelDB journal", fuseConf)

	migrateConf := &migrateConfig{From: backends.PebbleV1, To: backends.Pebble, CacheMiB: 8}
	parser.AddCommand(migrateSubCmd, "Migrates a journal between backends",
		"Copies every journaled solution from one backend to another, eg. from a pebble-v1 journal to pebble", migrateConf)

	_, err = parser.ParseArgs(args)
	if err != nil {
		return "", nil, err
	}
	if parser.Command.Active == nil {
		return "", nil, &flags.Error{Type: flags.ErrCommandRequired, Message: "a command is required"}
	}

	switch parser.Command.Active.Name {
	case listSubCmd:
		config = listConf
	case fuseSubCmd:
		config = fuseConf
	case migrateSubCmd:
		config = migrateConf
	}
	return parser.Command.Active.Name, config, nil
}
