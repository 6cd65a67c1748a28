package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jareeve/ace-bar-file-syncer/internal/svc"
)

// newServiceCmd builds the service management subcommand group.
func newServiceCmd() *cobra.Command {
	var (
		serviceName string
		userName    string
		force       bool
	)

	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the syncer as a system service",
	}
	serviceCmd.PersistentFlags().StringVar(&serviceName, "name", svc.DefaultServiceName, "service name")
	serviceCmd.PersistentFlags().StringVar(&userName, "user", "", "user to run the service as (Linux/macOS)")

	svcConfig := func() *svc.ServiceConfig {
		return &svc.ServiceConfig{
			Name:       serviceName,
			ConfigPath: cfgFile,
			UserName:   userName,
		}
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install the syncer as a system service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.CheckPrivileges(); err != nil {
				return err
			}
			if err := svc.Install(svcConfig(), force); err != nil {
				return err
			}
			fmt.Printf("service %q installed\n", serviceName)
			return nil
		},
	}
	installCmd.Flags().BoolVar(&force, "force", false, "replace an existing service")
	serviceCmd.AddCommand(installCmd)

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the system service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.CheckPrivileges(); err != nil {
				return err
			}
			if err := svc.Uninstall(svcConfig()); err != nil {
				return err
			}
			fmt.Printf("service %q uninstalled\n", serviceName)
			return nil
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the system service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.Start(svcConfig()); err != nil {
				return err
			}
			fmt.Printf("service %q started\n", serviceName)
			return nil
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the system service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.Stop(svcConfig()); err != nil {
				return err
			}
			fmt.Printf("service %q stopped\n", serviceName)
			return nil
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the system service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := svc.Status(svcConfig())
			if err != nil {
				return err
			}
			fmt.Printf("service %q is %s\n", serviceName, svc.StatusString(status))
			return nil
		},
	})

	return serviceCmd
}
