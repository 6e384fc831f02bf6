package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/models"
)

func main() {
	db, err := gorm.Open(sqlite.Open("./data/aegis.db"), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.SecurityRule{},
		&models.RuleDeployment{},
		&models.SecurityEvent{},
		&models.User{},
		&models.Notification{},
		&models.NotificationProvider{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	fmt.Println("✓ Database migrated successfully")

	// Seed a starter OWASP-style signature rule set.
	rules := []models.SecurityRule{
		{
			UUID:       uuid.NewString(),
			Name:       "SQL injection keywords",
			Category:   "sql_injection",
			Enabled:    true,
			Severity:   "critical",
			Action:     models.RuleActionBlock,
			Priority:   1,
			Conditions: `[{"kind":"pattern","patterns":["union\\s+select","or\\s+'?1'?\\s*=\\s*'?1","';\\s*--","\\bdrop\\s+table\\b","\\bselect\\b.+\\bfrom\\b"],"targets":["path","query","body"]}]`,
		},
		{
			UUID:       uuid.NewString(),
			Name:       "Cross-site scripting payloads",
			Category:   "xss",
			Enabled:    true,
			Severity:   "high",
			Action:     models.RuleActionBlock,
			Priority:   2,
			Conditions: `[{"kind":"pattern","patterns":["<script","javascript:","onerror\\s*=","onload\\s*=","document\\.cookie"],"targets":["path","query","body"]}]`,
		},
		{
			UUID:       uuid.NewString(),
			Name:       "Path traversal sequences",
			Category:   "path_traversal",
			Enabled:    true,
			Severity:   "high",
			Action:     models.RuleActionBlock,
			Priority:   3,
			Conditions: `[{"kind":"pattern","patterns":["\\.\\./","\\.\\.\\\\","%2e%2e%2f","%2e%2e/","/etc/passwd"],"targets":["path","query"]}]`,
		},
		{
			UUID:       uuid.NewString(),
			Name:       "Command injection operators",
			Category:   "command_injection",
			Enabled:    true,
			Severity:   "critical",
			Action:     models.RuleActionBlock,
			Priority:   4,
			Conditions: `[{"kind":"pattern","patterns":[";\\s*(cat|ls|id|whoami|wget|curl)\\b","\\|\\s*(cat|ls|id|whoami)\\b","\\$\\(.+\\)","&&\\s*(cat|ls|id)\\b"],"targets":["query","body"]}]`,
		},
		{
			UUID:       uuid.NewString(),
			Name:       "Scanner user agents",
			Category:   "automation",
			Enabled:    true,
			Severity:   "medium",
			Action:     models.RuleActionChallenge,
			Priority:   10,
			Conditions: `[{"kind":"bot_signature","fragments":["headless","phantomjs","selenium"]}]`,
		},
	}

	for _, rule := range rules {
		var existing models.SecurityRule
		if err := db.Where("name = ?", rule.Name).First(&existing).Error; err == gorm.ErrRecordNotFound {
			if err := db.Create(&rule).Error; err != nil {
				log.Printf("Failed to seed rule %q: %v", rule.Name, err)
				continue
			}
			fmt.Printf("✓ Seeded rule: %s\n", rule.Name)
		}
	}

	// Default admin account for first login.
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count == 0 {
		admin := models.User{
			UUID:    uuid.NewString(),
			Email:   "admin@localhost",
			Name:    "Administrator",
			Role:    "admin",
			Enabled: true,
		}
		if err := admin.SetPassword("changeme"); err != nil {
			log.Fatal("Failed to hash admin password:", err)
		}
		if err := db.Create(&admin).Error; err != nil {
			log.Fatal("Failed to seed admin user:", err)
		}
		fmt.Println("✓ Seeded admin user admin@localhost (password: changeme)")
	}

	fmt.Println("✓ Seed complete")
}
