package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/momentum-academy/portal/core"
	"github.com/momentum-academy/portal/core/notification"
)

// watch follows a user's inbox, printing a fresh snapshot at the configured
// poll interval until interrupted.
func (cli *commandLine) watch(uname string) error {
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(context.Background(), core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		cancel()
	}()

	poller := notification.NewPoller(cli.notifSvc, cli.conf, cli.svcLogger)
	fmt.Printf("Watching notifications for %s (every %v). Ctrl+C to stop.\n", usr.Username, cli.conf.Notifications.PollInterval)

	for snap := range poller.Poll(ctx, usr.ID) {
		fmt.Printf("--- %d unread ---\n", snap.Count)
		for _, n := range snap.Notifications {
			marker := " "
			if !n.Read {
				marker = "*"
			}
			fmt.Printf("%s %s  %s (%s)\n", marker, n.CreatedAt.Format("2006-01-02 15:04"), n.Message, n.RedirectURL)
		}
	}
	return nil
}
