package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/nomikai"
	"github.com/susu3304/warikan/internal/settlement"
)

const defaultReminderInterval = 60

var userFacing = []error{
	nomikai.ErrNotStarted,
	nomikai.ErrAlreadyStarted,
	nomikai.ErrNoSession,
	nomikai.ErrNegativeTotal,
	nomikai.ErrZeroAmount,
	nomikai.ErrNonPositivePayment,
	nomikai.ErrNotEnoughParticipants,
	nomikai.ErrInvalidRoundingUnit,
	nomikai.ErrInvalidInterval,
	nomikai.ErrPersistenceDisabled,
	nomikai.ErrTaskNotFound,
}

// Warikan handles the /warikan command.
type Warikan struct {
	svc    *nomikai.Service
	logger *zap.Logger
}

func NewWarikan(svc *nomikai.Service, logger *zap.Logger) *Warikan {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warikan{svc: svc, logger: logger}
}

func (w *Warikan) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	content := w.Dispatch(context.Background(), Invocation{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    interactionUserID(i),
		Options:   data.Options,
	})
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		w.logger.Error("failed to respond to interaction", zap.Error(err), zap.String("channel_id", i.ChannelID))
	}
}

// Invocation is the part of an interaction the command needs.
type Invocation struct {
	GuildID   string
	ChannelID string
	UserID    string
	Options   []*discordgo.ApplicationCommandInteractionDataOption
}

// Dispatch runs one subcommand and returns the reply text.
func (w *Warikan) Dispatch(ctx context.Context, inv Invocation) string {
	if len(inv.Options) == 0 {
		return "サブコマンドが指定されていません"
	}
	sub := inv.Options[0]
	ch, uid := inv.ChannelID, inv.UserID
	opts := sub.Options

	switch sub.Name {
	case "start":
		if err := w.svc.StartSession(ctx, ParseGuildID(inv.GuildID), ch, uid); err != nil {
			return w.errorText(err)
		}
		return "このチャンネルでセッションを開始しました"
	case "stop":
		if err := w.svc.StopSession(ctx, ch); err != nil {
			return w.errorText(err)
		}
		return "セッションを終了しました"
	case "join":
		if err := w.svc.Join(ctx, ch, uid); err != nil {
			return w.errorText(err)
		}
		return "参加者として登録しました"
	case "member":
		target := getUserID(opts, "user")
		if target == "" {
			return "ユーザーが指定されていません"
		}
		if err := w.svc.Join(ctx, ch, target); err != nil {
			return w.errorText(err)
		}
		return fmt.Sprintf("<@%s> を参加者に追加しました", target)
	case "weight":
		return w.weight(ctx, ch, opts)
	case "pay":
		amt := getIntOption(opts, "amount")
		if amt == nil {
			return "金額の指定が必要です"
		}
		joined, err := w.svc.AddPayment(ctx, ch, uid, *amt, getStringOption(opts, "memo"))
		if err != nil {
			return w.errorText(err)
		}
		msg := fmt.Sprintf("%d 円を記録しました", *amt)
		if joined {
			msg += "\nこのユーザーを参加登録しました"
		}
		return msg
	case "payfor":
		return w.payFor(ctx, ch, uid, opts)
	case "rounding":
		unit := getIntOption(opts, "unit")
		if unit == nil {
			return "丸め単位の指定が必要です"
		}
		strategy := getStringOption(opts, "strategy")
		if err := w.svc.SetRounding(ctx, ch, *unit, strategy); err != nil {
			return w.errorText(err)
		}
		if strategy == "" {
			return fmt.Sprintf("丸め単位を %d 円に設定しました", *unit)
		}
		return fmt.Sprintf("丸め単位を %d 円、端数の配分を %s に設定しました", *unit, strategy)
	case "settle":
		res, err := w.svc.Settle(ctx, ch)
		if err != nil {
			return w.errorText(err)
		}
		return res.Summary
	case "status":
		txt, err := w.svc.Status(ctx, ch)
		if err != nil {
			return w.errorText(err)
		}
		return txt
	case "memberlist":
		ids, err := w.svc.Members(ctx, ch)
		if err != nil {
			return w.errorText(err)
		}
		if len(ids) == 0 {
			return "参加者がいません"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "参加者 (%d名):\n", len(ids))
		for _, id := range ids {
			fmt.Fprintf(&b, "・<@%s>\n", id)
		}
		return b.String()
	case "done":
		other := getUserID(opts, "user")
		if other == "" {
			return "相手の指定が必要です"
		}
		msg, err := w.svc.CompleteTask(ctx, ch, uid, other)
		if err != nil {
			return w.errorText(err)
		}
		return msg
	case "paid":
		payee := getUserID(opts, "user")
		amt := getIntOption(opts, "amount")
		if payee == "" || amt == nil {
			return "送金先と金額の指定が必要です"
		}
		left, err := w.svc.RecordPayment(ctx, ch, uid, payee, *amt, getStringOption(opts, "memo"), uid)
		if err != nil {
			return w.errorText(err)
		}
		msg := fmt.Sprintf("<@%s> → <@%s> %d 円の送金を記録しました", uid, payee, *amt)
		if left > 0 {
			return msg + fmt.Sprintf("\n残り: %d 円", left)
		}
		return msg + "\nこの相手への精算は完了しました"
	case "remind":
		enabled := getBoolOption(opts, "enabled")
		if enabled == nil {
			return "有効/無効の指定が必要です"
		}
		interval := defaultReminderInterval
		if v := getIntOption(opts, "interval"); v != nil {
			interval = int(*v)
		}
		if err := w.svc.EnableReminder(ctx, ch, interval, *enabled); err != nil {
			return w.errorText(err)
		}
		if !*enabled {
			return "リマインダーを無効にしました"
		}
		return fmt.Sprintf("%d 分ごとにリマインドします", interval)
	default:
		return "未知のサブコマンドです"
	}
}

func (w *Warikan) weight(ctx context.Context, ch string, opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	users := getStringOption(opts, "users")
	val := getNumberOption(opts, "value")
	if users == "" || val == nil {
		return "users と value の指定が必要です"
	}
	ids := parseMentionIDs(users)
	if len(ids) == 0 {
		return "ユーザーのメンション/IDを認識できませんでした"
	}
	var joinedIDs []string
	for _, id := range ids {
		joined, err := w.svc.SetWeight(ctx, ch, id, *val)
		if err != nil {
			return w.errorText(err)
		}
		if joined {
			joinedIDs = append(joinedIDs, id)
		}
	}
	if len(ids) == 1 {
		msg := fmt.Sprintf("<@%s> の比率を %.2f に設定しました", ids[0], *val)
		if len(joinedIDs) == 1 {
			msg += "\nこのユーザーを参加登録しました"
		}
		return msg
	}
	msg := fmt.Sprintf("%d 名の比率を %.2f に設定しました", len(ids), *val)
	if len(joinedIDs) > 0 {
		msg += "\n参加登録: " + mentions(joinedIDs)
	}
	return msg
}

func (w *Warikan) payFor(ctx context.Context, ch, uid string, opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	amt := getIntOption(opts, "amount")
	if amt == nil {
		return "金額の指定が必要です"
	}
	ids := parseMentionIDs(getStringOption(opts, "users"))
	if len(ids) == 0 {
		return "ユーザーのメンション/IDを認識できませんでした"
	}
	payerJoined, benJoined, err := w.svc.AddPaymentFor(ctx, ch, uid, *amt, getStringOption(opts, "memo"), ids)
	if err != nil {
		return w.errorText(err)
	}
	msg := fmt.Sprintf("%s の分として %d 円を記録しました", mentions(ids), *amt)
	if payerJoined {
		msg += "\nこのユーザーを参加登録しました"
	}
	if len(benJoined) > 0 {
		msg += "\n参加登録: " + mentions(benJoined)
	}
	return msg
}

func (w *Warikan) errorText(err error) string {
	for _, known := range userFacing {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	if errors.Is(err, settlement.ErrUnknownStrategy) {
		return "端数の配分方法は largest / payer / first のいずれかです"
	}
	w.logger.Error("warikan command failed", zap.Error(err))
	return "エラーが発生しました"
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
