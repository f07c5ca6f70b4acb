// Package scenario holds the fixed catalog of simulated users a harness
// run drives through the platform. The catalog is immutable input: the
// harness never writes back into it, and consumers that need a capped
// message list do their own truncation.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// User is one simulated end-user profile.
type User struct {
	Name         string   `yaml:"name"`
	Email        string   `yaml:"email"`
	Phone        string   `yaml:"phone"`
	IntakeForm   string   `yaml:"intake_form"`
	DemoMessages []string `yaml:"demo_messages"`
}

// Default returns the built-in three-user catalog.
func Default() []User {
	return []User{
		{
			Name:       "Alice",
			Email:      "alice.johnson@example.com",
			Phone:      "+1234567890",
			IntakeForm: "I am health-conscious and have a severe dairy allergy. I prefer organic foods and eat three balanced meals daily. I avoid processed foods and artificial sweeteners.",
			DemoMessages: []string{
				"I feel bloated after eating dairy products",
				"I love eating fresh fruits and vegetables",
				"I prefer gluten-free options when available",
				"I drink lots of water throughout the day",
				"I avoid processed and packaged foods",
			},
		},
		{
			Name:       "Bob",
			Email:      "bob.smith@example.com",
			Phone:      "+1234567891",
			IntakeForm: "I'm a busy professional who often skips breakfast. I'm lactose intolerant and love spicy food but it gives me heartburn. I usually eat lunch at my desk.",
			DemoMessages: []string{
				"I usually skip breakfast due to my work schedule",
				"I'm lactose intolerant and avoid milk products",
				"I love spicy food but it gives me heartburn",
				"I often eat lunch at my desk around 1pm",
				"I drink too much coffee during work hours",
			},
		},
		{
			Name:       "Charlie",
			Email:      "charlie.brown@example.com",
			Phone:      "+1234567892",
			IntakeForm: "I'm a vegetarian fitness enthusiast who meal preps on Sundays. I eat five small meals throughout the day and avoid sugar. I have acid reflux issues.",
			DemoMessages: []string{
				"I eat five small meals throughout the day",
				"I'm vegetarian and love plant-based proteins",
				"I meal prep on Sundays for the whole week",
				"I avoid sugar as much as possible",
				"I have acid reflux issues with certain foods",
			},
		},
	}
}

// Load reads a scenario catalog from a YAML file. The file holds a
// top-level `users` list.
func Load(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var doc struct {
		Users []User `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if len(doc.Users) == 0 {
		return nil, fmt.Errorf("scenario file %s defines no users", path)
	}

	seen := map[string]int{}
	for idx, u := range doc.Users {
		if u.Name == "" {
			return nil, fmt.Errorf("users[%d]: name is required", idx)
		}
		if u.Email == "" {
			return nil, fmt.Errorf("users[%d]: email is required", idx)
		}
		if prev, dup := seen[u.Email]; dup {
			return nil, fmt.Errorf("users[%d]: email %q already used at index %d", idx, u.Email, prev)
		}
		seen[u.Email] = idx
	}
	return doc.Users, nil
}
