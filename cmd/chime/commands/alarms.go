package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chimelab/chime/pkg/models"
	"github.com/urfave/cli/v3"
)

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a new alarm",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "time",
				Usage:    "time of day, HH:MM",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "label",
				Usage: "alarm label",
			},
			&cli.StringFlag{
				Name:  "repeat",
				Usage: "repeat days, e.g. mon,wed,fri",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			at, err := time.Parse("15:04", cmd.String("time"))
			if err != nil {
				return fmt.Errorf("invalid time %q, expected HH:MM", cmd.String("time"))
			}
			// Anchor the time-of-day on today so the already-passed check
			// lands on the right calendar day.
			now := time.Now()
			at = time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())

			var repeat models.RepeatDays
			if raw := cmd.String("repeat"); raw != "" {
				var tokens []models.Weekday
				for _, tok := range strings.Split(raw, ",") {
					tokens = append(tokens, models.Weekday(strings.TrimSpace(tok)))
				}
				repeat, err = models.NewRepeatDays(tokens...)
				if err != nil {
					return err
				}
			}

			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			alarms, err := c.CreateAlarm(ctx, &models.CreateAlarmRequest{
				Label:      cmd.String("label"),
				Time:       at,
				RepeatDays: repeat,
			})
			if err != nil {
				return err
			}
			for _, a := range alarms {
				printAlarm(a)
			}
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all alarms",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			alarms, err := c.ListAlarms(ctx)
			if err != nil {
				return err
			}
			if len(alarms) == 0 {
				fmt.Println(mutedStyle.Render("no alarms"))
				return nil
			}
			for _, a := range alarms {
				printAlarm(a)
			}
			return nil
		},
	}
}

func printAlarm(a *models.Alarm) {
	when := a.Time.Format("15:04")
	repeat := "once"
	if a.IsRepeating() {
		repeat = a.RepeatDays.String()
	}
	line := fmt.Sprintf("%s  %s  %s  %s", a.ID, when, repeat, a.DisplayLabel())
	if a.Enabled {
		fmt.Println(successStyle.Render("●") + " " + line)
	} else {
		fmt.Println(mutedStyle.Render("○") + " " + disabledStyle.Render(line))
	}
}

func toggleCommand() *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Enable or disable an alarm",
		ArgsUsage: "<alarm-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one alarm id")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			alarms, err := c.ToggleAlarm(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			for _, a := range alarms {
				printAlarm(a)
			}
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an alarm",
		ArgsUsage: "<alarm-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one alarm id")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if _, err := c.DeleteAlarm(ctx, cmd.Args().First()); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("deleted"))
			return nil
		},
	}
}

func ringingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ringing",
		Usage: "Show alarms that are currently ringing",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			ringing, err := c.ListRinging(ctx)
			if err != nil {
				return err
			}
			if len(ringing) == 0 {
				fmt.Println(mutedStyle.Render("nothing ringing"))
				return nil
			}
			for _, r := range ringing {
				fmt.Printf("%s  %s  since %s\n", errorStyle.Render("RINGING"), r.Label, r.At.Format("15:04:05"))
			}
			return nil
		},
	}
}

// signalCommand delivers a dismiss or snooze signal for a ringing alarm,
// standing in for the native ringing surface.
func signalCommand() *cli.Command {
	return &cli.Command{
		Name:      "signal",
		Usage:     "Send a dismiss or snooze signal for an alarm",
		ArgsUsage: "<dismiss|snooze> <alarm-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("expected: signal <dismiss|snooze> <alarm-id>")
			}
			var sigType models.SignalType
			switch cmd.Args().Get(0) {
			case "dismiss":
				sigType = models.SignalDismissed
			case "snooze":
				sigType = models.SignalSnoozed
			default:
				return fmt.Errorf("unknown signal %q", cmd.Args().Get(0))
			}

			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			sig := models.Signal{
				Type:    sigType,
				AlarmID: cmd.Args().Get(1),
			}
			if err := c.PostSignal(ctx, sig); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("signal sent"))
			return nil
		},
	}
}
