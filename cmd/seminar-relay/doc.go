// Command seminar-relay collects seminar announcements from regional
// transport bureau sources, persists the important ones, and notifies
// subscribers over email and chat. It runs once with -once or on the
// configured daily schedule.
package main
