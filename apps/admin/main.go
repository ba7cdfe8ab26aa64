package main

import (
	"context"
	"os"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
	logsvc "github.com/trezcool/edufee/services/logger"
	"github.com/trezcool/edufee/storage/database"
	sqlxrepos "github.com/trezcool/edufee/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewZerolog(os.Stdout, conf, "ADMIN")

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal().Err(err).Msg("creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening database")
	}

	// start CLI
	studentRepo := sqlxrepos.NewStudentRepository(db)
	cli := commandLine{
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(db),
		feeSvc:  fee.NewService(sqlxrepos.NewFeeRepository(db), studentRepo),
	}
	err = cli.run(context.Background(), os.Args[1:])
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error().Err(err).Msg("command failed")
		}
		os.Exit(1)
	}
}
