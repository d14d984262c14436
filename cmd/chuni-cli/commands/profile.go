package commands

import (
	"chuniscrape/lib/scrapers/chunithm"
	"chuniscrape/lib/timezone"
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var profileBasic bool

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Shows the player profile.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			var profile chunithm.PlayerProfile
			var err error
			if profileBasic {
				profile, err = client.GetBasicPlayerProfile(ctx)
			} else {
				profile, err = client.GetPlayerProfile(ctx)
			}
			if err != nil {
				return err
			}
			printProfile(profile)
			return nil
		})
	},
}

func printProfile(p chunithm.PlayerProfile) {
	t := NewTable()
	t.AppendRows([]table.Row{
		{"Name", p.Name},
		{"Level", fmt.Sprintf("%d (reborn %d)", p.Level, p.RebornLevel)},
		{"Rating", fmt.Sprintf("%.2f (max %.2f)", p.Rating, p.MaxRating)},
		{"Over Power", fmt.Sprintf("%.2f (%.2f%%)", p.OverPower, p.OverPowerPercentage)},
		{"Possession", p.Possession.String()},
		{"Nameplate", fmt.Sprintf("%s [%s]", p.Nameplate.Text, p.Nameplate.Rarity.String())},
		{"Last Played", p.LastPlayed.In(timezone.Location).Format("2006-01-02 15:04")},
	})
	if p.Extras != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Friend Code", p.Extras.FriendCode},
			{"Currency", fmt.Sprintf("%d (%d earned)", p.Extras.OwnedCurrency, p.Extras.EarnedCurrency)},
			{"Play Count", p.Extras.PlayCount},
		})
	}
	t.Render()
}

var avatarOutput string

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Renders the player's avatar into a png.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			profile, err := client.GetBasicPlayerProfile(ctx)
			if err != nil {
				return err
			}
			img, err := client.RenderAvatar(ctx, profile.Avatar)
			if err != nil {
				return err
			}
			err = os.WriteFile(avatarOutput, img, 0644)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", avatarOutput)
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Changes the in-game player name.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			err := client.ChangePlayerName(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("player name is now %s\n", args[0])
			return nil
		})
	},
}

func init() {
	profileCmd.Flags().BoolVar(&profileBasic, "basic", false, "Only read the home page, skips the friend code and play count.")
	avatarCmd.Flags().StringVarP(&avatarOutput, "output", "o", "avatar.png", "The file to write the png to.")
	rootCmd.AddCommand(profileCmd, avatarCmd, renameCmd)
}
