package models

// AllModels lists every table managed by AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&UserProfile{},
		&Student{},
		&Station{},
		&SessionCodeRecord{},
		&ConversationRoom{},
		&Message{},
	}
}
