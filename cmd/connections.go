package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oracleplane/oracleplane/internal/model"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage stored Oracle connections",
}

var (
	connUsername string
	connPassword string
	connDSN      string
)

var connectionsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a new Oracle connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		conn, err := a.store.CreateConnection(cmd.Context(), model.Connection{
			Name:             args[0],
			Username:         connUsername,
			Password:         connPassword,
			ConnectionString: connDSN,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created connection %q (id=%d)\n", conn.Name, conn.ID)
		return nil
	},
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		conns, err := a.store.ListConnections(cmd.Context())
		if err != nil {
			return err
		}
		for _, conn := range conns {
			plans, err := a.store.PlansByConnection(cmd.Context(), conn.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%d\t%s\t%s\t(%d plan(s))\n", conn.ID, conn.Name, conn.ConnectionString, len(plans))
		}
		return nil
	},
}

var connectionsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a connection, cascading to every Plan referencing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		conn, err := a.store.FindConnectionByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := a.store.DeleteConnection(cmd.Context(), conn.ID); err != nil {
			return err
		}
		fmt.Printf("deleted connection %q\n", conn.Name)
		return nil
	},
}

func init() {
	connectionsCreateCmd.Flags().StringVar(&connUsername, "username", "", "Oracle username")
	connectionsCreateCmd.Flags().StringVar(&connPassword, "password", "", "Oracle password")
	connectionsCreateCmd.Flags().StringVar(&connDSN, "dsn", "", "Oracle easy-connect string or TNS alias")
	_ = connectionsCreateCmd.MarkFlagRequired("username")
	_ = connectionsCreateCmd.MarkFlagRequired("password")
	_ = connectionsCreateCmd.MarkFlagRequired("dsn")

	connectionsCmd.AddCommand(connectionsCreateCmd, connectionsListCmd, connectionsDeleteCmd)
	rootCmd.AddCommand(connectionsCmd)
}
