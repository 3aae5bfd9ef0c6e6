package commands

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikan/internal/nomikai"
)

type opt = discordgo.ApplicationCommandInteractionDataOption

func sub(name string, opts ...*opt) []*opt {
	return []*opt{{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}}
}

func intOpt(name string, v int64) *opt {
	return &opt{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func numOpt(name string, v float64) *opt {
	return &opt{Name: name, Type: discordgo.ApplicationCommandOptionNumber, Value: v}
}

func strOpt(name, v string) *opt {
	return &opt{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func userOpt(name, id string) *opt {
	return &opt{Name: name, Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

func boolOpt(name string, v bool) *opt {
	return &opt{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

type harness struct {
	t *testing.T
	w *Warikan
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, w: NewWarikan(nomikai.NewService(nil, nomikai.Defaults{}, nil), nil)}
}

func (h *harness) run(user string, opts []*opt) string {
	h.t.Helper()
	return h.w.Dispatch(context.Background(), Invocation{GuildID: "42", ChannelID: "c1", UserID: user, Options: opts})
}

func TestWarikan_FullFlow(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "このチャンネルでセッションを開始しました", h.run("100", sub("start")))
	assert.Equal(t, "既に開始されています", h.run("100", sub("start")))
	assert.Equal(t, "参加者として登録しました", h.run("100", sub("join")))
	assert.Equal(t, "<@200> を参加者に追加しました", h.run("100", sub("member", userOpt("user", "200"))))

	msg := h.run("300", sub("pay", intOpt("amount", 3000), strOpt("memo", "beer")))
	assert.Equal(t, "3000 円を記録しました\nこのユーザーを参加登録しました", msg)

	list := h.run("100", sub("memberlist"))
	assert.Equal(t, "参加者 (3名):\n・<@100>\n・<@200>\n・<@300>\n", list)

	settle := h.run("100", sub("settle"))
	assert.Contains(t, settle, "<@100> → <@300>: 1000 円")
	assert.Contains(t, settle, "<@200> → <@300>: 1000 円")

	assert.Equal(t, "対象のタスクが見つかりません", h.run("300", sub("paid", userOpt("user", "200"), intOpt("amount", 400))))

	paid := h.run("200", sub("paid", userOpt("user", "300"), intOpt("amount", 400)))
	assert.Equal(t, "<@200> → <@300> 400 円の送金を記録しました\n残り: 600 円", paid)

	done := h.run("100", sub("done", userOpt("user", "300")))
	assert.Contains(t, done, "完了しました")
	assert.Equal(t, "対象のタスクが見つかりません", h.run("100", sub("done", userOpt("user", "300"))))

	assert.Equal(t, "セッションを終了しました", h.run("100", sub("stop")))
	assert.Equal(t, "セッションが存在しません", h.run("100", sub("stop")))
}

func TestWarikan_NoSession(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "セッションが開始されていません", h.run("1", sub("join")))
	assert.Equal(t, "サブコマンドが指定されていません", h.run("1", nil))
	assert.Equal(t, "未知のサブコマンドです", h.run("1", sub("dance")))
}

func TestWarikan_Weight(t *testing.T) {
	h := newHarness(t)
	h.run("1", sub("start"))
	h.run("1", sub("join"))

	msg := h.run("1", sub("weight", strOpt("users", "<@1>"), numOpt("value", 2)))
	assert.Equal(t, "<@1> の比率を 2.00 に設定しました", msg)

	msg = h.run("1", sub("weight", strOpt("users", "<@!2> 3"), numOpt("value", 0.5)))
	assert.Equal(t, "2 名の比率を 0.50 に設定しました\n参加登録: <@2>, <@3>", msg)

	assert.Equal(t, "ユーザーのメンション/IDを認識できませんでした",
		h.run("1", sub("weight", strOpt("users", "nobody"), numOpt("value", 1))))
}

func TestWarikan_PayFor(t *testing.T) {
	h := newHarness(t)
	h.run("1", sub("start"))

	msg := h.run("1", sub("payfor", intOpt("amount", 2000), strOpt("users", "<@2> <@3>")))
	assert.Equal(t, "<@2>, <@3> の分として 2000 円を記録しました\nこのユーザーを参加登録しました\n参加登録: <@2>, <@3>", msg)

	assert.Equal(t, "金額は0以外で指定してください",
		h.run("1", sub("payfor", intOpt("amount", 0), strOpt("users", "<@2>"))))
}

func TestWarikan_Rounding(t *testing.T) {
	h := newHarness(t)
	h.run("1", sub("start"))

	assert.Equal(t, "丸め単位を 10 円に設定しました", h.run("1", sub("rounding", intOpt("unit", 10))))
	assert.Equal(t, "丸め単位を 100 円、端数の配分を payer に設定しました",
		h.run("1", sub("rounding", intOpt("unit", 100), strOpt("strategy", "payer"))))
	assert.Equal(t, "端数の配分方法は largest / payer / first のいずれかです",
		h.run("1", sub("rounding", intOpt("unit", 100), strOpt("strategy", "dice"))))
	assert.Equal(t, "端数単位は正の整数で指定してください", h.run("1", sub("rounding", intOpt("unit", -5))))
}

func TestWarikan_SettleErrors(t *testing.T) {
	h := newHarness(t)
	h.run("1", sub("start"))
	h.run("1", sub("join"))

	assert.Equal(t, "参加者が2人以上必要です", h.run("1", sub("settle")))
	h.run("2", sub("join"))
	assert.Equal(t, "精算は不要です", h.run("1", sub("settle")))
}

func TestWarikan_RemindWithoutDatabase(t *testing.T) {
	h := newHarness(t)
	h.run("1", sub("start"))

	msg := h.run("1", sub("remind", boolOpt("enabled", true), intOpt("interval", 30)))
	assert.Equal(t, "この機能にはデータベースが必要です", msg)
}

func TestGetCommands(t *testing.T) {
	cmds := GetCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, CommandName, cmds[0].Name)

	var names []string
	for _, o := range cmds[0].Options {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{
		"start", "stop", "join", "member", "weight", "pay", "payfor", "rounding",
		"settle", "status", "memberlist", "done", "paid", "remind",
	}, names)
}
