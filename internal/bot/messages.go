package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-pdf-library-bot/internal/domain"
	"github.com/tbourn/go-pdf-library-bot/internal/services"
)

const (
	msgEmptyQuery     = "Please provide a search term for the PDF."
	msgSuperUser      = "You are a super user! You have unlimited searches. 🚀"
	msgSearching      = "Searching for PDFs, please wait..."
	msgNoResults      = "Sorry, I couldn't find any PDFs related to that query. 😔"
	msgSearchFailed   = "An error occurred while processing your request."
	msgUnauthorized   = "❌ You are not authorized to use this command."
	msgPromoteUsage   = "Please reply to a message from the user you want to promote, or use /addsuperuser <user_id> [name]."
	msgDemoteUsage    = "Please reply to a message from the user you want to demote, or use /removesuperuser <user_id>."
	msgPDFSent        = "PDF sent successfully!"
	msgPDFMissing     = "Sorry, I couldn't retrieve the PDF. Please try searching again."
	msgPDFSendFailed  = "An error occurred while sending the PDF."
	msgUnknownAction  = "Something went wrong, please try again."
	msgDonateThanks   = "Thank you for considering a donation! 🙏"
	msgEmptyBroadcast = "Please include a message to broadcast."
	msgNoSuperUsers   = "There are no super users yet."

	signature = "Developed by @redmoon0x(Deviprasad Shetty)"

	donateLabel    = "🙏 Donate"
	developerLabel = "Developer"
)

const helpText = "To use this bot, simply type the title or a keyword related to the PDF you're looking for.\n" +
	"I will search the web for relevant PDFs and provide you with a list of options to choose from.\n" +
	"Click on any of the options to get the PDF delivered directly to you.\n" +
	"Non-super users have a limit of %d searches every %s."

func welcomeText(tier domain.Tier, name string) string {
	if tier.Unlimited() {
		return "✨ Welcome, " + name + "! ✨\n" +
			"It's always a pleasure to have you here. You have unlimited access to the best PDFs in Nami's Library! 📚\n" +
			"Just type the title or topic you're interested in, and I'll find the perfect PDFs for you.\n" +
			signature
	}
	return "Welcome to Nami's Library! 📚\n" +
		"I can help you find PDFs from the web.\n" +
		"Just type the title or topic you're looking for, and I'll search for it.\n" +
		"If you find this service helpful, consider supporting us:\n" +
		signature
}

func quotaText(retry time.Duration) string {
	return fmt.Sprintf("⏳ You have reached your search limit. Please try again in %s.", formatHM(retry))
}

func cooldownText(seconds int) string {
	return fmt.Sprintf("⏳ Please wait %d seconds before requesting another PDF.", seconds)
}

func floodText(seconds int) string {
	return fmt.Sprintf("Rate limit exceeded. Please wait for %d seconds.", seconds)
}

// formatHM renders d as whole hours and minutes, e.g. "1h 50m".
func formatHM(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}

// formatWindow renders a quota window the way the help text reads it:
// "2 hours", "90 minutes".
func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}

func caption(title, url string) string {
	return title + "\n\nSource: " + url
}

func auditLine(name string, userID int64, url string) string {
	return fmt.Sprintf("User %s (%d) received: %s", name, userID, url)
}

func superUserList(users []domain.User) string {
	if len(users) == 0 {
		return msgNoSuperUsers
	}
	var b strings.Builder
	b.WriteString("⭐ Super users:\n")
	for _, u := range users {
		name := u.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "• %s (%d)\n", name, u.UserID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func statsText(s *services.UsageStats) string {
	return fmt.Sprintf("📊 Bot statistics\n\n"+
		"Known users: %d\n"+
		"Super users: %d\n"+
		"Rate-limited now: %d\n"+
		"Searches in current window: %d\n"+
		"Pending cached results: %d\n"+
		"PDFs delivered (24h): %d",
		s.KnownUsers, s.SuperUsers, s.RateLimited, s.ActiveSearches, s.PendingResults, s.DeliveriesLast24)
}
