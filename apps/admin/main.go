package main

import (
	"log"
	"os"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/notification"
	"github.com/momentum-academy/portal/core/user"
	emailsvc "github.com/momentum-academy/portal/services/email"
	logsvc "github.com/momentum-academy/portal/services/logger"
	"github.com/momentum-academy/portal/storage/database"
	sqlxrepos "github.com/momentum-academy/portal/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	notifSvc := notification.NewService(
		sqlxrepos.NewNotificationRepository(db), usrSvc, emailsvc.NewConsoleServiceMock(conf), conf, svcLogger,
	)

	// start CLI
	cli := commandLine{
		db:        db,
		conf:      conf,
		usrRepo:   usrRepo,
		notifSvc:  notifSvc,
		svcLogger: svcLogger,
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
