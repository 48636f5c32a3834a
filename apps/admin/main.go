package main

import (
	"log"
	"os"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/database"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	errAndDie(database.CreateIfNotExist(core.Conf))
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: database.NewUserRepository(db),
		schRepo: database.NewSchoolRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
