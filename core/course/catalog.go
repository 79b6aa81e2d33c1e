// Package course holds the static course catalog. Prices are kept
// server-side so the enrollment endpoint never trusts a client amount.
package course

import "errors"

var ErrNotFound = errors.New("course not found")

// Course is one offering; Price is in the currency's minor units.
type Course struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

var catalog = []Course{
	// Foundational
	{ID: "AWS_CLOUD_PRACTITIONER", Name: "AWS Cloud Practitioner", Price: 360000},
	{ID: "AWS_TECHNICAL_ESSENTIALS", Name: "AWS Technical Essentials", Price: 360000},
	// Associate level
	{ID: "AWS_SOLUTIONS_ARCHITECT_ASSOCIATE", Name: "AWS Solutions Architect Associate", Price: 360000},
	{ID: "AWS_DEVELOPER_ASSOCIATE", Name: "AWS Developer Associate", Price: 360000},
	{ID: "AWS_SYSOPS_ADMINISTRATOR_ASSOCIATE", Name: "AWS SysOps Administrator Associate", Price: 360000},
	// Professional level
	{ID: "AWS_SOLUTIONS_ARCHITECT_PROFESSIONAL", Name: "AWS Solutions Architect Professional", Price: 360000},
	{ID: "AWS_DEVOPS_ENGINEER_PROFESSIONAL", Name: "AWS DevOps Engineer Professional", Price: 360000},
	// Specialty
	{ID: "AWS_ADVANCED_NETWORKING_SPECIALTY", Name: "AWS Advanced Networking Specialty", Price: 360000},
	{ID: "AWS_DATA_ANALYTICS_SPECIALTY", Name: "AWS Data Analytics Specialty", Price: 360000},
	{ID: "AWS_DATABASE_SPECIALTY", Name: "AWS Database Specialty", Price: 360000},
	{ID: "AWS_MACHINE_LEARNING_SPECIALTY", Name: "AWS Machine Learning Specialty", Price: 360000},
	{ID: "AWS_SECURITY_SPECIALTY", Name: "AWS Security Specialty", Price: 360000},
	// Labs and operations
	{ID: "AWS_CLOUD_QUEST", Name: "AWS Cloud Quest", Price: 360000},
	{ID: "AWS_INDUSTRY_QUEST", Name: "AWS Industry Quest", Price: 360000},
}

var byID = func() map[string]Course {
	m := make(map[string]Course, len(catalog))
	for _, c := range catalog {
		m[c.ID] = c
	}
	return m
}()

func Get(id string) (Course, error) {
	c, ok := byID[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func All() []Course {
	out := make([]Course, len(catalog))
	copy(out, catalog)
	return out
}

// IsValidID reports whether id names a catalog course.
func IsValidID(id string) bool {
	_, ok := byID[id]
	return ok
}
