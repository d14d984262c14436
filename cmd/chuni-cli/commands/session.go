package commands

import (
	"chuniscrape/lib/scrapers/chunithm"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <user> <clal>",
	Short: "Checks a clal login cookie and stores the session under <user>.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := manager.Login(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s (lv. %d, rating %.2f)\n", profile.Name, profile.Level, profile.Rating)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logs out of CHUNITHM-NET and deletes the stored session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := manager.Logout(cmd.Context(), userFlag)
		if err != nil {
			return err
		}
		fmt.Printf("removed session for %s\n", userFlag)
		return nil
	},
}

var exportCookiesCmd = &cobra.Command{
	Use:   "export-cookies",
	Short: "Prints the stored session as a Netscape cookies.txt file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			fmt.Print(client.Core.Jar.Serialize())
			return nil
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Lists the users with a stored session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := manager.Users(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Println(u)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, exportCookiesCmd, usersCmd)
}
