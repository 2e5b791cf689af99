// package models defines the data model for the beatport to spotify sync daemon
package models
