package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/warikan/internal/settlement"
)

const CommandName = "warikan"

func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:         CommandName,
			Description:  "飲み会の割り勘を管理します",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("start", "このチャンネルで割り勘セッションを開始します"),
				subcommand("stop", "セッションを終了します"),
				subcommand("join", "自分を参加者として登録します"),
				subcommand("member", "ユーザーを参加者に追加します",
					userOption("user", "追加するユーザー", true),
				),
				subcommand("weight", "参加者の負担比率を設定します",
					stringOption("users", "対象ユーザー (メンションまたはID、空白区切り)", true),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "value",
						Description: "比率 (0 で負担なし)",
						Required:    true,
					},
				),
				subcommand("pay", "全員で割る支払いを記録します (負の値で訂正)",
					intOption("amount", "金額 (円)", true),
					stringOption("memo", "メモ", false),
				),
				subcommand("payfor", "特定のメンバー分の支払いを記録します",
					intOption("amount", "金額 (円)", true),
					stringOption("users", "対象ユーザー (メンションまたはID、空白区切り)", true),
					stringOption("memo", "メモ", false),
				),
				subcommand("rounding", "端数処理を設定します",
					intOption("unit", "丸め単位 (円)", true),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "strategy",
						Description: "割り切れない分の配分先",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "端数が大きい人", Value: string(settlement.RemainderLargest)},
							{Name: "支払者", Value: string(settlement.RemainderPayer)},
							{Name: "先頭から順に", Value: string(settlement.RemainderFirst)},
						},
					},
				),
				subcommand("settle", "精算方法を計算します"),
				subcommand("status", "現在の収支を表示します"),
				subcommand("memberlist", "参加者一覧を表示します"),
				subcommand("done", "支払タスクを完了にします",
					userOption("user", "相手", true),
				),
				subcommand("paid", "相手への送金を記録します (一部支払い可)",
					userOption("user", "送金先", true),
					intOption("amount", "金額 (円)", true),
					stringOption("memo", "メモ", false),
				),
				subcommand("remind", "未精算リマインダーを設定します",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "enabled",
						Description: "有効にするか",
						Required:    true,
					},
					intOption("interval", "間隔 (分)、既定は60", false),
				),
			},
		},
	}
}

func subcommand(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

func userOption(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: desc,
		Required:    required,
	}
}

func stringOption(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: desc,
		Required:    required,
	}
}

func intOption(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: desc,
		Required:    required,
	}
}

func boolPtr(b bool) *bool {
	return &b
}
