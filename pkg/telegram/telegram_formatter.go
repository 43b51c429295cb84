package telegram

import (
	"fmt"
	"strings"
	"time"
)

// FormatStockAlertForTelegram renders a tail-session alert message.
func FormatStockAlertForTelegram(symbol, name string, price float64, triggeredAt time.Time, satisfied int, total int) string {
	var sb strings.Builder
	sb.WriteString("🚨 *Tail-Session Alert*\n\n")
	sb.WriteString(fmt.Sprintf("*Symbol:* `%s` %s\n", symbol, name))
	sb.WriteString(fmt.Sprintf("*Price:* %.2f\n", price))
	sb.WriteString(fmt.Sprintf("*Conditions:* %d/%d satisfied\n", satisfied, total))
	sb.WriteString(fmt.Sprintf("*Time:* %s\n", triggeredAt.Format("2006-01-02 15:04:05")))
	return sb.String()
}
