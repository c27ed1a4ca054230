package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/napryag/clinic_booking_bot/pkg/app"
	"github.com/napryag/clinic_booking_bot/pkg/config"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/utils/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Clinic booking administration",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "Path to the YAML config (default etc/app.yml)")

	cmd.AddCommand(departmentsCmd())
	cmd.AddCommand(doctorsCmd())
	cmd.AddCommand(slotsCmd())
	cmd.AddCommand(lookupCmd())
	cmd.AddCommand(cancelCmd())
	cmd.AddCommand(rescheduleCmd())
	return cmd
}

// open loads the config named by --config and connects the services.
// Logs go to stderr so command output stays clean.
func open(cmd *cobra.Command) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel, cmd.ErrOrStderr())
	return app.New(ctx(cmd), cfg, nil, log)
}

func departmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "List active departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			depts, err := a.Catalog.ActiveDepartments(ctx(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range depts {
				fmt.Fprintf(out, "%s\t%s\n", d.ID, d.Name)
			}
			return nil
		},
	}
}

func doctorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "List active doctors of a department",
		RunE: func(cmd *cobra.Command, args []string) error {
			dept, _ := cmd.Flags().GetString("department")
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.Catalog.ActiveDoctors(ctx(cmd), dept)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range docs {
				fmt.Fprintf(out, "%s\t%s\t%s %s\t$%.2f\n", d.ID, d.Name,
					strings.Join(d.AvailableDays, ","), d.AvailableHours, d.ConsultationFee)
			}
			return nil
		},
	}
	cmd.Flags().String("department", "", "Department id")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show the time slots a doctor offers on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetString("doctor")
			day, _ := cmd.Flags().GetString("date")
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			date, err := availability.ParseDate(day, a.Config.Location())
			if err != nil {
				return err
			}
			doc, err := a.Catalog.Doctor(ctx(cmd), doctorID)
			if err != nil {
				return err
			}
			slots, err := availability.ComputeSlots(doc, date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(slots) == 0 {
				fmt.Fprintln(out, "no slots")
				return nil
			}
			fmt.Fprintln(out, strings.Join(slots, " "))
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Find appointments by patient email",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Appointments.LookupByEmail(ctx(cmd), email)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "No appointments found for %s\n", email)
			}
			for _, appt := range list {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", appt.ID, a.Appointments.When(appt), appt.DoctorName, appt.Status)
			}
			return nil
		},
	}
	cmd.Flags().String("email", "", "Patient email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func cancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a scheduled appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			reason, _ := cmd.Flags().GetString("reason")
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			appt, err := a.Appointments.Cancel(ctx(cmd), id, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s (%s)\n", appt.ID, a.Appointments.When(appt))
			return nil
		},
	}
	cmd.Flags().String("id", "", "Appointment id")
	cmd.Flags().String("reason", "", "Cancellation reason")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func rescheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reschedule",
		Short: "Reschedule an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Appointments.Reschedule(ctx(cmd), id)
		},
	}
	cmd.Flags().String("id", "", "Appointment id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}
