package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/nao1215/resourcehub/internal/notification"
)

// symbols は通知の種類ごとの表示記号。
var symbols = map[notification.Type]string{
	notification.TypeSuccess: "✓",
	notification.TypeError:   "✗",
	notification.TypeWarning: "⚠",
	notification.TypeInfo:    "ℹ",
}

// renderNotifications は新しく追加された通知をwに1行ずつ出力する。
// 自動削除による変更は出力しない。
func renderNotifications(q *notification.Queue, w io.Writer) {
	var mu sync.Mutex
	seen := make(map[string]bool)

	q.Subscribe(func(items []notification.Notification) {
		mu.Lock()
		defer mu.Unlock()

		for _, n := range items {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			line := symbols[n.Type] + " " + n.Title
			if n.Message != "" {
				line += ": " + n.Message
			}
			fmt.Fprintln(w, line)
		}
	})
}

// table はタブ区切りで列を揃えて出力する。
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, header ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

// printMetrics はregに記録されたメトリクスをPrometheusのテキスト形式で出力する。
func printMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("メトリクスの収集に失敗: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("メトリクスの出力に失敗: %w", err)
		}
	}
	return nil
}
