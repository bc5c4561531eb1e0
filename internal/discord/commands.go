package discord

import "github.com/bwmarrin/discordgo"

const (
	commandLFG    = "lfg"
	commandEndLFG = "endlfg"

	optionGame       = "game"
	optionMinPlayers = "min_players"
	optionMaxPlayers = "max_players"
)

// Commands returns the slash commands the bot serves.
func Commands() []*discordgo.ApplicationCommand {
	minCount := 1.0
	return []*discordgo.ApplicationCommand{
		{
			Name:        commandLFG,
			Description: "Start a looking-for-group session",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionGame,
					Description: "Name of the first game (optional)",
					MaxLength:   100,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionMinPlayers,
					Description: "Minimum number of players (optional)",
					MinValue:    &minCount,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionMaxPlayers,
					Description: "Maximum number of players (optional)",
					MinValue:    &minCount,
				},
			},
		},
		{
			Name:        commandEndLFG,
			Description: "End the current looking-for-group session",
		},
	}
}
